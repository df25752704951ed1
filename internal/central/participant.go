package central

import (
	"github.com/tutu-network/mrta-fleet/internal/overlay"
)

// Participant answers a CentralInitiator's AssignmentNotification and
// StatusUpdateRequest messages on behalf of one AMR's
// SimpleOrderManagement. Unlike auction.Participant it runs no CanAddTask
// feasibility gate or stale-metrics safety check: it accepts every task
// that AddTask appends and refuses only when AddTask returns an error.
// Grounded on centralized_participant.cpp.
type Participant struct {
	connection string
	overlay    *overlay.Overlay
	om         *SimpleOrderManagement
}

// NewParticipant builds a Participant addressed as connection, backed by
// om, and registers its direct-message handler on ov.
func NewParticipant(connection string, ov *overlay.Overlay, om *SimpleOrderManagement) *Participant {
	p := &Participant{connection: connection, overlay: ov, om: om}
	ov.RegisterConnection(connection, p.handleMessage)
	return p
}

func (p *Participant) handleMessage(msg overlay.Message) {
	switch v := msg.Payload.(type) {
	case AssignmentNotification:
		p.onAssignmentNotification(v)
	case StatusUpdateRequest:
		p.onStatusUpdateRequest(v)
	}
}

// onAssignmentNotification implements spec.md §4.6: append the task and
// reply with the resulting per-task metrics and new end position. AddTask
// errors on a malformed task or one this AMR cannot execute (an unsupported
// functionality, a position outside the topology), never on schedule
// infeasibility, so a failure here is a refusal of the task itself rather
// than of a slot in the schedule.
func (p *Participant) onAssignmentNotification(n AssignmentNotification) {
	metrics, end, err := p.om.AddTask(n.Task)
	if err != nil {
		p.overlay.Send(n.InitiatorConnection, p.connection, AssignmentResponse{
			TaskID:                n.Task.ID,
			Accept:                false,
			ParticipantConnection: p.connection,
		})
		return
	}
	p.overlay.Send(n.InitiatorConnection, p.connection, AssignmentResponse{
		TaskID:                n.Task.ID,
		Accept:                true,
		Metrics:                metrics,
		EndPosition:            end,
		ParticipantConnection: p.connection,
	})
}

func (p *Participant) onStatusUpdateRequest(req StatusUpdateRequest) {
	p.overlay.Send(req.InitiatorConnection, p.connection, StatusUpdate{
		ParticipantConnection: p.connection,
		EndPosition:            p.om.EndPosition(),
	})
}
