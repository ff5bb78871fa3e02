package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"webtoondl/downloader"
	"webtoondl/models"
	"webtoondl/packager"
	"webtoondl/validation"
)

const missingFieldsMessage = "Please provide manga name and episode number"

// Handler serves the download, progress and status endpoints
type Handler struct {
	dl   Downloader
	opts Options
}

// NewHandler creates the handler set
func NewHandler(dl Downloader, opts Options) *Handler {
	return &Handler{dl: dl, opts: opts}
}

// episodeNumber accepts 3 as well as "3"; HTML forms tend to send strings
type episodeNumber int

func (n *episodeNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
		if len(data) == 0 {
			*n = 0
			return nil
		}
	}
	v, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("episodeNum must be an integer: %w", err)
	}
	*n = episodeNumber(v)
	return nil
}

type downloadBody struct {
	MangaName  string        `json:"mangaName"`
	EpisodeNum episodeNumber `json:"episodeNum"`
	Format     string        `json:"format"`
}

type imagesResponse struct {
	Images []string `json:"images"`
}

// HandleDownload
//
//	@summary runs the pipeline for one episode.
//	@desc Document formats are sent as an attachment and deleted afterwards;
//	@desc the images format returns data URIs inline.
//	@route /download [POST]
func (h *Handler) HandleDownload(c echo.Context) error {
	var b downloadBody
	if err := c.Bind(&b); err != nil {
		return RespondWithMessage(c, http.StatusBadRequest, missingFieldsMessage)
	}

	req := models.Request{
		ID:      c.Response().Header().Get(echo.HeaderXRequestID),
		Title:   strings.TrimSpace(b.MangaName),
		Episode: int(b.EpisodeNum),
		Format:  models.ParseFormat(b.Format, h.opts.DefaultFormat),
	}

	// Length, id and format are checked by the downloader
	if req.Title == "" || req.Episode <= 0 {
		return RespondWithMessage(c, http.StatusBadRequest, missingFieldsMessage)
	}

	result, err := h.dl.Download(c.Request().Context(), req)
	if err != nil {
		log.Printf("[HTTP] Download %s failed: %v", req.ID, err)
		return RespondWithError(c, err)
	}

	if result.Artifact == nil {
		return c.JSON(http.StatusOK, imagesResponse{Images: result.Images})
	}

	defer result.Cleanup()
	if err := c.Attachment(result.Artifact.Path, result.Artifact.Filename); err != nil {
		log.Printf("[HTTP] Error sending the file: %v", err)
		return err
	}
	return nil
}

// ProgressEvent is one server-sent event on /progress
type ProgressEvent struct {
	ID       string `json:"id,omitempty"`
	Progress int    `json:"progress"`
	Done     bool   `json:"done"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

const statusWaiting = "waiting"

func eventFor(task downloader.Task) ProgressEvent {
	return ProgressEvent{
		ID:       task.ID,
		Progress: int(math.Round(task.Progress)),
		Done:     task.Done(),
		Status:   string(task.Status),
		Message:  task.Message,
	}
}

// HandleProgress
//
//	@summary streams progress as server-sent events.
//	@desc With ?id= it follows that request; without, it follows the most
//	@desc recently started one, ignoring tasks that finished before the stream
//	@desc opened. The stream ends when the task is done, when the client goes
//	@desc away, or when no task shows up within the idle timeout.
//	@route /progress [GET]
func (h *Handler) HandleProgress(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("id"))
	if err := validation.ValidateRequestID(id); err != nil {
		return RespondWithMessage(c, http.StatusBadRequest, err.Error())
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	tracker := h.dl.Tracker()
	opened := time.Now()
	ticker := time.NewTicker(h.opts.ProgressInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		ev, known := h.snapshot(tracker, id, opened)
		if known && id == "" {
			id = ev.ID
		}

		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return nil
		}
		w.Flush()

		if ev.Done {
			return nil
		}
		if !known && h.opts.ProgressIdle > 0 && time.Since(opened) >= h.opts.ProgressIdle {
			log.Printf("[HTTP] Progress stream idle for %v, closing", h.opts.ProgressIdle)
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (h *Handler) snapshot(tracker *downloader.Tracker, id string, opened time.Time) (ProgressEvent, bool) {
	if id != "" {
		task, ok := tracker.Get(id)
		if !ok {
			return ProgressEvent{ID: id, Status: statusWaiting}, false
		}
		return eventFor(task), true
	}

	task, ok := tracker.Latest()
	if !ok || (task.Done() && task.FinishedAt.Before(opened)) {
		return ProgressEvent{Status: statusWaiting}, false
	}
	return eventFor(task), true
}

// StatusResponse describes the service state
type StatusResponse struct {
	Active  int               `json:"active"`
	Ceiling int               `json:"ceiling"`
	Formats []string          `json:"formats"`
	Tasks   []downloader.Task `json:"tasks"`
}

// HandleStatus
//
//	@summary returns the concurrency gate and the tracked tasks.
//	@route /status [GET]
func (h *Handler) HandleStatus(c echo.Context) error {
	gate := h.dl.Gate()
	return c.JSON(http.StatusOK, StatusResponse{
		Active:  gate.Active(),
		Ceiling: gate.Ceiling(),
		Formats: packager.Formats(),
		Tasks:   h.dl.Tracker().Tasks(),
	})
}
