package server

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/audio"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/lang"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/transcribe"
)

// createRequest is the non-file part of a transcription submission.
type createRequest struct {
	Language string `form:"language" validate:"omitempty,min=2,max=11"`
}

// handleCreate accepts an audio upload and starts a transcription job.
// Replies 202 with the job entry; progress is available via the job resource
// and its event stream.
func (s *Server) handleCreate(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid form data")
	}
	if err := s.validate.Struct(&req); err != nil {
		msgs := formatValidationErrors(err)
		return respondError(c, fiber.StatusBadRequest, strings.Join(msgs, "; "))
	}
	if req.Language != "" {
		if err := lang.Validate(req.Language); err != nil {
			return respondError(c, fiber.StatusBadRequest, err.Error())
		}
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "missing file upload")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, fmt.Sprintf("failed to open upload: %v", err))
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
	}
	if len(data) == 0 {
		return respondError(c, fiber.StatusBadRequest, "uploaded file is empty")
	}

	src := audio.Source{
		Name: fileHeader.Filename,
		MIME: fileHeader.Header.Get("Content-Type"),
		Data: data,
	}

	if s.registry.ActiveForFile(src.Name) {
		return respondError(c, fiber.StatusConflict,
			fmt.Sprintf("a transcription for %q is already running", src.Name))
	}

	entry := s.registry.Create(src.Name, src.Size(), lang.Normalize(req.Language))

	s.jobs.Add(1)
	go s.runJob(entry.ID, src, entry.Language)

	s.log.WithFields(logrus.Fields{
		"job_id":     entry.ID,
		"file":       src.Name,
		"size":       src.Size(),
		"request_id": RequestID(c),
	}).Info("transcription job accepted")

	return respondJSON(c, fiber.StatusAccepted, entry)
}

// runJob drives one job through the pipeline and mirrors its lifecycle into
// the registry.
func (s *Server) runJob(id string, src audio.Source, language string) {
	defer s.jobs.Done()

	hooks := Hooks{
		Status: func(status transcribe.Status, message string) {
			s.registry.Update(id, func(e *Entry) {
				e.Status = status
				e.Message = message
			})
			s.registry.Publish(Event{Type: EventStatus, JobID: id, Status: status, Message: message})
		},
		Progress: func(current, total int) {
			s.registry.Update(id, func(e *Entry) {
				e.Current = current
				e.Total = total
			})
			s.registry.Publish(Event{Type: EventProgress, JobID: id, Current: current, Total: total})
		},
		Segment: func(seg transcribe.Segment) {
			segCopy := seg
			s.registry.Publish(Event{Type: EventSegment, JobID: id, Segment: &segCopy})
		},
	}

	job, err := s.pipeline.Run(s.baseCtx, src, language, hooks)
	if err != nil {
		s.registry.Update(id, func(e *Entry) {
			e.Status = transcribe.StatusFailed
			e.Error = err.Error()
			if job != nil {
				e.Mode = job.Mode
			}
		})
		s.registry.Publish(Event{Type: EventFailed, JobID: id, Status: transcribe.StatusFailed, Error: err.Error()})
		s.log.WithError(err).WithField("job_id", id).Error("transcription job failed")
		return
	}

	result := job.Result()
	s.registry.Update(id, func(e *Entry) {
		e.Status = job.Status
		e.Mode = job.Mode
		e.Current = job.Current
		e.Total = job.Total
		e.Result = &result
	})
	s.registry.Publish(Event{Type: EventDone, JobID: id, Status: job.Status, Result: &result})
	s.log.WithFields(logrus.Fields{
		"job_id":   id,
		"mode":     job.Mode,
		"chunks":   job.Total,
		"language": result.Language,
	}).Info("transcription job finished")
}

// handleList returns all known jobs, newest first.
func (s *Server) handleList(c *fiber.Ctx) error {
	return respondJSON(c, fiber.StatusOK, s.registry.List())
}

// handleGet returns one job.
func (s *Server) handleGet(c *fiber.Ctx) error {
	entry, ok := s.registry.Get(c.Params("id"))
	if !ok {
		return respondError(c, fiber.StatusNotFound, "job not found")
	}
	return respondJSON(c, fiber.StatusOK, entry)
}

// handleEvents streams job events over a websocket. The first frame is a
// snapshot of the current state; terminal jobs get the snapshot only.
func (s *Server) handleEvents(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	id := conn.Params("id")

	// Subscribe before reading the snapshot so no event can fall between.
	events, cancel := s.registry.Subscribe(id)
	defer cancel()

	entry, ok := s.registry.Get(id)
	if !ok {
		_ = conn.WriteJSON(Event{Type: EventFailed, JobID: id, Error: "job not found"})
		return
	}

	if err := conn.WriteJSON(snapshotEvent(entry)); err != nil {
		return
	}
	if entry.Status.Terminal() {
		return
	}

	// Reader loop whose only purpose is noticing the client going away.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Type == EventDone || ev.Type == EventFailed {
				return
			}
		case <-clientGone:
			return
		}
	}
}

// snapshotEvent renders an entry as a status event for new subscribers.
func snapshotEvent(entry Entry) Event {
	ev := Event{
		Type:    EventStatus,
		JobID:   entry.ID,
		Status:  entry.Status,
		Message: entry.Message,
		Current: entry.Current,
		Total:   entry.Total,
		Result:  entry.Result,
		Error:   entry.Error,
	}
	switch entry.Status {
	case transcribe.StatusDone:
		ev.Type = EventDone
	case transcribe.StatusFailed:
		ev.Type = EventFailed
	}
	return ev
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

// errorHandler converts unhandled errors into the JSON error shape.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}
	return respondError(c, code, err.Error())
}
