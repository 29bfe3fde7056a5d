package config

type WorkerKeyStruct struct {
	PersistProgressQueue   string
	PersistViolationsQueue string
	PersistScoresQueue     string
}

var WorkerKey = &WorkerKeyStruct{
	PersistProgressQueue:   "persist_progress_queue",
	PersistViolationsQueue: "persist_violations_queue",
	PersistScoresQueue:     "persist_scores_queue",
}
