package fit

import (
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuifit/internal/model"
)

// Session ties a loaded data source to its controller.
type Session struct {
	ID     string
	Source string
	*Controller
}

// NewSession starts a session with a fresh id.
func NewSession(source string, series model.Series, fitter *Fitter) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Source:     source,
		Controller: NewController(series, fitter),
	}
}

// Reload replaces the session's data with a newly loaded source.
func (s *Session) Reload(source string, series model.Series) {
	s.Source = source
	s.Load(series)
}

// Record converts a publication into a history record.
func (s *Session) Record(pub Publication, now time.Time) model.FitRecord {
	res := pub.Result
	return model.FitRecord{
		SessionID: s.ID,
		Source:    s.Source,
		Trigger:   pub.Trigger,
		CreatedAt: now,
		Rect:      pub.Rect,
		Points:    len(pub.Points),
		Amplitude: res.Amplitude,
		Tau:       res.Tau,
		Offset:    res.Offset,
		HasOffset: res.HasOffset,
		Status:    res.Status.String(),
		Converged: res.Converged(),
		SSR:       res.SSR,
	}
}
