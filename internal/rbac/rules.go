package rbac

// Default role policy. Admin gets everything.
var RolePermissions = map[string][]string{
	"student": {
		"course:view",
		"course:enroll",
		"quiz:take",
		"quiz:stats-own",
		"attempt:view-own",
		"announcement:view",
		"resource:view",
		"user:change_password",
	},
	"teacher": {
		"course:view",
		"course:create",
		"course:delete_own",
		"quiz:create",
		"quiz:take",
		"quiz:stats-any",
		"attempt:view-all",
		"announcement:view",
		"announcement:create",
		"resource:view",
		"resource:publish",
		"users:list",
		"users:bulk_upsert",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
