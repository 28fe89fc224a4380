package constants

// Race phase and configuration constants
const (
	PhaseWaiting   = "waiting"
	PhaseCountdown = "countdown"
	PhaseRunning   = "running"
	PhaseFinished  = "finished"

	DefaultCountdownSeconds = 3
	DefaultPassageWords     = 220
	RefillPassageWords      = 160
	RefillLowWater          = 50

	MinPassageWords = 50
	MaxPassageWords = 1200
)
