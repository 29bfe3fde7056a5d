package engine

// Score grades a final answer set against the question list. Pure and
// deterministic: same inputs, same output. An answer matches only on exact
// equality with the stored answer token; unanswered questions count as
// incorrect. Zero questions yields zero percent.
func Score(questions []Question, answers map[string]string) Result {
	total := len(questions)
	correct := 0
	for _, q := range questions {
		if ans, ok := answers[q.ID]; ok && ans == q.CorrectAnswer {
			correct++
		}
	}

	var percentage float64
	if total > 0 {
		percentage = float64(correct) / float64(total) * 100
	}

	return Result{
		Correct:    correct,
		Total:      total,
		Percentage: percentage,
	}
}
