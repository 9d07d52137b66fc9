package model

// Lesson is one runnable unit of content, as handed out by a lesson repository.
type Lesson struct {
	Category   string `json:"category"`
	Identifier string `json:"identifier"`
	Source     string `json:"source"`
	// Path is where the lesson lives; opaque to the execution core.
	Path string `json:"path"`
}

// LessonInfo is metadata shown before running a lesson.
type LessonInfo struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Summary  string `json:"summary"`
}
