package agent

import (
	"github.com/google/uuid"

	"github.com/smarthub-edu/smarthub/internal/quiz"
)

// FallbackSource marks quizzes substituted for timed-out generations.
const FallbackSource = "fallback"

// FallbackQuiz is the fixed placeholder served when the agent service
// does not answer in time. The learner still gets a working quiz and
// the Source field tells the client it is not the requested adaptive
// content.
func FallbackQuiz(courseID, strategy string) quiz.Quiz {
	return quiz.Quiz{
		ID:           "fq-" + uuid.NewString(),
		CourseID:     courseID,
		Title:        "Practice quiz",
		TimeLimitSec: 10 * 60,
		Source:       FallbackSource,
		Questions: []quiz.Question{
			{
				ID:     "fb-1",
				Kind:   quiz.KindSingleChoice,
				Prompt: "Which study habit is most effective for long-term retention?",
				Options: []quiz.Option{
					{ID: "a", Label: "Cramming the night before"},
					{ID: "b", Label: "Spaced repetition over several days"},
					{ID: "c", Label: "Rereading the textbook once"},
					{ID: "d", Label: "Highlighting every sentence"},
				},
				AnswerKey: []string{"b"},
				Points:    1,
			},
			{
				ID:        "fb-2",
				Kind:      quiz.KindTrueFalse,
				Prompt:    "Testing yourself on material strengthens recall more than passive review.",
				AnswerKey: []string{"true"},
				Points:    1,
			},
			{
				ID:     "fb-3",
				Kind:   quiz.KindMultipleChoice,
				Prompt: "Which of the following are forms of active learning?",
				Options: []quiz.Option{
					{ID: "a", Label: "Summarizing a chapter in your own words"},
					{ID: "b", Label: "Teaching the topic to a peer"},
					{ID: "c", Label: "Watching a lecture at double speed"},
					{ID: "d", Label: "Working through practice problems"},
				},
				AnswerKey: []string{"a", "b", "d"},
				Points:    2,
			},
		},
	}
}
