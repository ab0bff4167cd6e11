package ui

// Config contains TUI-specific configuration.
type Config struct {
	EnableMouse bool

	// Passage to analyze on startup, if any
	Passage string

	// Repeat limit shown in the progress bar before the first snapshot
	RepeatLimit int

	// For debugging the UI
	ShowSeq       bool `env:"ENGREPEAT_UI_SHOW_SEQ"       envDefault:"false"`
	MaxWidth      int  `env:"ENGREPEAT_UI_MAX_WIDTH"      envDefault:"100"`
	AltScreen     bool `env:"ENGREPEAT_UI_ALT_SCREEN"     envDefault:"true"`
	InputHeight   int  `env:"ENGREPEAT_UI_INPUT_HEIGHT"   envDefault:"10"`
	StatusSeconds int  `env:"ENGREPEAT_UI_STATUS_SECONDS" envDefault:"3"`
}
