package api

import (
	"fmt"
	"net/http"
	"strings"

	ics "github.com/arran4/golang-ical"
	"github.com/foxseedlab/studentize/internal/session"
	"github.com/gin-gonic/gin"
)

const calendarProductID = "-//Studentize//Advising Sessions//EN"

func (s *Server) handleCalendar(c *gin.Context) {
	view, err := s.sessions.GetScheduledSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if view.ScheduledAt == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "scheduled session has no start time"})
		return
	}
	body := s.renderCalendar(view)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "studentize-"+view.ID+".ics"))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

func (s *Server) renderCalendar(view *session.ScheduledSessionView) string {
	start := view.ScheduledAt.UTC()
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodRequest)
	cal.SetProductId(calendarProductID)

	event := cal.AddEvent(view.ID + "@studentize")
	event.SetDtStampTime(s.now().UTC())
	event.SetCreatedTime(view.CreatedAt.UTC())
	event.SetStartAt(start)
	event.SetEndAt(start.Add(s.cfg.ScheduledSessionDuration()))
	event.SetSummary("Studentize advising session")

	var desc strings.Builder
	desc.WriteString("Advising session between advisor and student.")
	if link := strings.TrimSpace(view.MeetingLink); link != "" {
		event.SetLocation(link)
		event.SetURL(link)
		desc.WriteString("\nJoin: " + link)
	}
	event.SetDescription(desc.String())
	if view.EndedAt != nil {
		event.SetStatus(ics.ObjectStatusCancelled)
	} else {
		event.SetStatus(ics.ObjectStatusConfirmed)
	}
	return cal.Serialize()
}
