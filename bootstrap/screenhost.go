package bootstrap

import "go.uber.org/zap"

// LogScreenHost is the headless ScreenHost: attached screens are only
// recorded in the log. A UI shell embedding this runtime supplies its own.
type LogScreenHost struct {
	Sugar *zap.SugaredLogger
}

// Attach logs the attachment.
func (h LogScreenHost) Attach(screen string) {
	h.Sugar.Infow("Screen attached", "screen", screen)
}
