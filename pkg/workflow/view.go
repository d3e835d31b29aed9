package workflow

import (
	"log"
	"strings"

	"github.com/1F47E/qr-navigator/pkg/models"
)

// View renders workflow output. Calls arrive on the controller goroutine.
type View interface {
	ShowPreview(visible bool)
	RevealMenu()
	SetDestinations(names []string)
	DrawLine(line models.LineState)
	MoveOverview(pose models.Pose)
}

// LogView writes every view update as a log line
type LogView struct {
	Logger *log.Logger
}

func (v LogView) ShowPreview(visible bool) {
	if visible {
		v.Logger.Printf("preview: on")
		return
	}
	v.Logger.Printf("preview: off")
}

func (v LogView) RevealMenu() {
	v.Logger.Printf("menu revealed")
}

func (v LogView) SetDestinations(names []string) {
	if len(names) == 0 {
		v.Logger.Printf("destinations: (none)")
		return
	}
	v.Logger.Printf("destinations: %s", strings.Join(names, ", "))
}

func (v LogView) DrawLine(line models.LineState) {
	corners := line.Renderable()
	if corners == nil {
		v.Logger.Printf("line hidden")
		return
	}
	parts := make([]string, len(corners))
	for i, c := range corners {
		parts[i] = c.String()
	}
	v.Logger.Printf("line: %s", strings.Join(parts, " -> "))
}

func (v LogView) MoveOverview(pose models.Pose) {
	v.Logger.Printf("overview camera at %s yaw=%.1f pitch=%.1f", pose.Position, pose.Yaw, pose.Pitch)
}

// NopView discards all updates
type NopView struct{}

func (NopView) ShowPreview(bool)          {}
func (NopView) RevealMenu()               {}
func (NopView) SetDestinations([]string)  {}
func (NopView) DrawLine(models.LineState) {}
func (NopView) MoveOverview(models.Pose)  {}
