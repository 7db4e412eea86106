// internal/services/watermark_service.go
package services

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mediaseal/mediaseal-backend/internal/models"
)

// WatermarkRenderer applies a visible watermark carrying the verification
// code. Rendering failure is non-fatal: the caller falls back to the
// unwatermarked asset with a logged warning.
type WatermarkRenderer interface {
	Apply(video []byte, code string, tier models.Tier, position string) (applied bool, rendered []byte, err error)
}

// TagRenderer is the built-in renderer: it injects a trailing metadata tag
// carrying the verification code into the container. A dedicated rendering
// service replaces it in deployments that burn a visual mark into frames.
type TagRenderer struct {
	log *logrus.Entry
}

func NewTagRenderer() *TagRenderer {
	return &TagRenderer{log: logrus.WithField("component", "watermark_renderer")}
}

func (r *TagRenderer) Apply(video []byte, code string, tier models.Tier, position string) (bool, []byte, error) {
	if len(video) == 0 {
		return false, nil, fmt.Errorf("no video data to watermark")
	}

	tag := fmt.Sprintf("\x00mseal:code=%s;tier=%s;pos=%s\x00", code, tier, position)
	rendered := make([]byte, 0, len(video)+len(tag))
	rendered = append(rendered, video...)
	rendered = append(rendered, []byte(tag)...)

	r.log.WithFields(logrus.Fields{
		"tier":     tier,
		"position": position,
	}).Debug("Watermark tag injected")
	return true, rendered, nil
}
