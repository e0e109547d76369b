package model

import "time"

// LiturgyStepType categorizes a moment of the service.
type LiturgyStepType string

const (
	StepReception     LiturgyStepType = "reception"
	StepPrayer        LiturgyStepType = "prayer"
	StepWorship       LiturgyStepType = "worship"
	StepOffering      LiturgyStepType = "offering"
	StepSermon        LiturgyStepType = "sermon"
	StepCommunion     LiturgyStepType = "communion"
	StepBaptism       LiturgyStepType = "baptism"
	StepAnnouncements LiturgyStepType = "announcements"
	StepFellowship    LiturgyStepType = "fellowship"
	StepSpecial       LiturgyStepType = "special"
)

// Liturgy is the ordered plan of one service. At most one liturgy is active
// at a time; CurrentStep points into Steps while the service runs.
type Liturgy struct {
	ID            string        `json:"id"`
	Theme         string        `json:"theme"`
	Verse         string        `json:"verse"`
	ServiceDate   time.Time     `json:"service_date"`
	IsActive      bool          `json:"is_active"`
	PublicEnabled bool          `json:"public_enabled"`
	CurrentStep   int           `json:"current_step"`
	CreatedBy     string        `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
	Steps         []LiturgyStep `json:"steps,omitempty"`
}

// LiturgyStep is one moment of the service, ordered by Position within its
// liturgy. Worship steps may reference repertoire songs by id.
type LiturgyStep struct {
	ID              string          `json:"id"`
	LiturgyID       string          `json:"liturgy_id"`
	Position        int             `json:"position"`
	Title           string          `json:"title"`
	StepType        LiturgyStepType `json:"step_type"`
	ResponsibleID   string          `json:"responsible_id"`
	Description     string          `json:"description"`
	DurationMinutes int             `json:"duration_minutes"`
	SongIDs         []string        `json:"song_ids"`
}
