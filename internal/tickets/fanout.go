package tickets

import (
	"fmt"

	"github.com/quantumtracker/backend/internal/notifications"
	"github.com/quantumtracker/backend/internal/users"
)

// Link returns the client route of a ticket.
func Link(ticketID string) string {
	return "/tickets/" + ticketID
}

// distinctAssignees returns assignees other than skip, each once, in order.
func distinctAssignees(assignees []string, skip string) []string {
	out := make([]string, 0, len(assignees))
	seen := make(map[string]bool, len(assignees))
	for _, id := range assignees {
		if id == "" || id == skip || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// commentRecipients notifies the author and every assignee other than the
// poster. An author who is also assigned receives both messages.
func commentRecipients(ticket Ticket, poster Actor) []notifications.Request {
	link := Link(ticket.ID)
	var requests []notifications.Request
	if ticket.AuthorID != "" && ticket.AuthorID != poster.ID {
		requests = append(requests, notifications.Request{
			UserID:  ticket.AuthorID,
			Message: fmt.Sprintf("New comment by %s on your authored ticket %s", poster.Username, ticket.ID),
			Link:    link,
		})
	}
	for _, assignee := range distinctAssignees(ticket.Assignees, poster.ID) {
		requests = append(requests, notifications.Request{
			UserID:  assignee,
			Message: fmt.Sprintf("New comment by %s on ticket %s", poster.Username, ticket.ID),
			Link:    link,
		})
	}
	return requests
}

// changeRecipients notifies the author and assignees that tracked fields changed.
// assignees is the list as it stood before the update.
func changeRecipients(ticket Ticket, assignees, changed []string, editor Actor) []notifications.Request {
	if len(changed) == 0 {
		return nil
	}
	fields := notifications.FormatList(changed, true)
	verb := notifications.Verb(len(changed))
	link := Link(ticket.ID)
	var requests []notifications.Request
	if ticket.AuthorID != "" && !users.IsSystemUser(ticket.AuthorID) && ticket.AuthorID != editor.ID {
		requests = append(requests, notifications.Request{
			UserID:  ticket.AuthorID,
			Message: fmt.Sprintf("%s %s been changed on your authored ticket %s", fields, verb, ticket.ID),
			Link:    link,
		})
	}
	for _, assignee := range distinctAssignees(assignees, editor.ID) {
		requests = append(requests, notifications.Request{
			UserID:  assignee,
			Message: fmt.Sprintf("%s %s been changed on ticket %s", fields, verb, ticket.ID),
			Link:    link,
		})
	}
	return requests
}

// assignmentRecipients notifies users added to or removed from the ticket.
func assignmentRecipients(ticketID string, added, removed []string, editor Actor) []notifications.Request {
	link := Link(ticketID)
	var requests []notifications.Request
	for _, userID := range added {
		if userID != editor.ID {
			requests = append(requests, notifications.Request{UserID: userID, Message: "You've been assigned to ticket " + ticketID, Link: link})
		}
	}
	for _, userID := range removed {
		if userID != editor.ID {
			requests = append(requests, notifications.Request{UserID: userID, Message: "You've been unassigned from ticket " + ticketID, Link: link})
		}
	}
	return requests
}

// diffAssignees returns the users present only in next and only in previous.
func diffAssignees(previous, next []string) (added, removed []string) {
	before := make(map[string]bool, len(previous))
	for _, id := range previous {
		before[id] = true
	}
	after := make(map[string]bool, len(next))
	for _, id := range next {
		after[id] = true
		if !before[id] {
			added = append(added, id)
		}
	}
	for _, id := range previous {
		if !after[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// cleanAssignees trims, canonicalizes and dedupes ids, keeping their order.
func cleanAssignees(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = users.CanonicalID(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
