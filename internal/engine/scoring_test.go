package engine

import "testing"

func TestScore(t *testing.T) {
	questions := []Question{
		{ID: "q1", CorrectAnswer: "A"},
		{ID: "q2", CorrectAnswer: "B"},
		{ID: "q3", CorrectAnswer: "C"},
		{ID: "q4", CorrectAnswer: "D"},
		{ID: "q5", CorrectAnswer: "A"},
	}

	tests := []struct {
		name       string
		questions  []Question
		answers    map[string]string
		correct    int
		percentage float64
	}{
		{
			name:       "all correct",
			questions:  questions,
			answers:    map[string]string{"q1": "A", "q2": "B", "q3": "C", "q4": "D", "q5": "A"},
			correct:    5,
			percentage: 100,
		},
		{
			name:       "three of five correct",
			questions:  questions,
			answers:    map[string]string{"q1": "A", "q2": "B", "q3": "C", "q4": "A", "q5": "B"},
			correct:    3,
			percentage: 60,
		},
		{
			name:       "unanswered counts as incorrect",
			questions:  questions,
			answers:    map[string]string{"q1": "A", "q2": "B"},
			correct:    2,
			percentage: 40,
		},
		{
			name:       "no answers",
			questions:  questions,
			answers:    map[string]string{},
			correct:    0,
			percentage: 0,
		},
		{
			name:       "answers for unknown questions are ignored",
			questions:  questions[:2],
			answers:    map[string]string{"q1": "A", "q2": "B", "q99": "A"},
			correct:    2,
			percentage: 100,
		},
		{
			name:       "zero questions yields zero percent",
			questions:  nil,
			answers:    map[string]string{"q1": "A"},
			correct:    0,
			percentage: 0,
		},
		{
			name:       "match is exact on the answer token",
			questions:  []Question{{ID: "q1", CorrectAnswer: "A"}},
			answers:    map[string]string{"q1": "a"},
			correct:    0,
			percentage: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.questions, tc.answers)
			if got.Correct != tc.correct {
				t.Errorf("Correct = %d, want %d", got.Correct, tc.correct)
			}
			if got.Total != len(tc.questions) {
				t.Errorf("Total = %d, want %d", got.Total, len(tc.questions))
			}
			if got.Percentage != tc.percentage {
				t.Errorf("Percentage = %v, want %v", got.Percentage, tc.percentage)
			}
		})
	}
}

func TestScoreIsPure(t *testing.T) {
	questions := makeQuestions(4)
	answers := map[string]string{"q1": "A", "q2": "B", "q3": "A"}

	first := Score(questions, answers)
	second := Score(questions, answers)
	if first != second {
		t.Errorf("Score not deterministic: %+v vs %+v", first, second)
	}
	// Scoring must not mutate its inputs.
	if len(answers) != 3 {
		t.Errorf("Score mutated the answer map: %v", answers)
	}
}
