package models

import "time"

// AboutContent is the single editable block of the about page.
type AboutContent struct {
	ID             int64  `json:"id" db:"id" yaml:"-"`
	Title          string `json:"title" db:"title" yaml:"title"`
	Subtitle       string `json:"subtitle" db:"subtitle" yaml:"subtitle"`
	HistoryTitle   string `json:"history_title" db:"history_title" yaml:"history_title"`
	HistoryContent string `json:"history_content" db:"history_content" yaml:"history_content"`
	MissionTitle   string `json:"mission_title" db:"mission_title" yaml:"mission_title"`
	MissionContent string `json:"mission_content" db:"mission_content" yaml:"mission_content"`
	ProcessTitle   string `json:"process_title" db:"process_title" yaml:"process_title"`
	TeamTitle      string `json:"team_title" db:"team_title" yaml:"team_title"`
	TeamIntro      string `json:"team_intro" db:"team_intro" yaml:"team_intro"`
	CTATitle       string `json:"cta_title" db:"cta_title" yaml:"cta_title"`
	CTAContent     string `json:"cta_content" db:"cta_content" yaml:"cta_content"`
}

func (c *AboutContent) FillDefaults() {
	if c.HistoryTitle == "" {
		c.HistoryTitle = "Notre Histoire"
	}
	if c.MissionTitle == "" {
		c.MissionTitle = "Notre Mission"
	}
	if c.ProcessTitle == "" {
		c.ProcessTitle = "Notre Processus de Sélection"
	}
	if c.TeamTitle == "" {
		c.TeamTitle = "Notre Équipe"
	}
}

type AboutItemKind string

const (
	AboutTeam        AboutItemKind = "team"
	AboutValue       AboutItemKind = "value"
	AboutStep        AboutItemKind = "step"
	AboutTestimonial AboutItemKind = "testimonial"
)

var AboutItemKinds = []AboutItemKind{AboutTeam, AboutValue, AboutStep, AboutTestimonial}

func (k AboutItemKind) Valid() bool {
	switch k {
	case AboutTeam, AboutValue, AboutStep, AboutTestimonial:
		return true
	}
	return false
}

// AboutItem is a team member, company value, selection step or testimonial.
type AboutItem struct {
	ID        int64         `json:"id" db:"id" yaml:"-"`
	Kind      AboutItemKind `json:"kind" db:"kind" yaml:"kind"`
	Title     string        `json:"title" db:"title" yaml:"title"`
	Subtitle  string        `json:"subtitle" db:"subtitle" yaml:"subtitle"`
	Body      string        `json:"body" db:"body" yaml:"body"`
	Icon      string        `json:"icon" db:"icon" yaml:"icon"`
	ImageURL  *string       `json:"image_url,omitempty" db:"image_url" yaml:"image_url"`
	Location  string        `json:"location" db:"location" yaml:"location"`
	Order     int           `json:"order" db:"sort_order" yaml:"order"`
	IsActive  bool          `json:"is_active" db:"is_active" yaml:"is_active"`
	CreatedAt time.Time     `json:"created_at" db:"created_at" yaml:"-"`
}
