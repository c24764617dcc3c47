package web

import (
	"context"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/hpungsan/juris/internal/audio"
	"github.com/hpungsan/juris/internal/chat"
	"github.com/hpungsan/juris/internal/errors"
)

// HandleChat handles GET /chatbot: the transcript and the composer.
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "chat", h.chatData())
}

// HandleChatMessage handles POST /chatbot/messages: send a text message.
func (h *Handlers) HandleChatMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	_, err := h.chat.Send(r.Context(), r.FormValue("message"))
	h.renderTranscript(w, r, err)
}

// HandleChatVoice handles POST /chatbot/voice: a recorded clip uploaded as
// the multipart field "audio".
func (h *Handlers) HandleChatVoice(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.VoiceMaxBytes
	if limit <= 0 {
		limit = audio.DefaultMaxBytes
	}
	// Leave room for multipart framing around the clip itself.
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
	if err := r.ParseMultipartForm(limit); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid or oversized voice upload"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("audio")
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("audio file is required"))
		return
	}

	_, err = h.chat.SendVoice(r.Context(), uploadSource{file: file, header: header})
	h.renderTranscript(w, r, err)
}

// HandleChatClear handles POST /chatbot/clear: start a fresh conversation.
func (h *Handlers) HandleChatClear(w http.ResponseWriter, r *http.Request) {
	err := h.chat.Reset(r.Context())
	h.renderTranscript(w, r, err)
}

// renderTranscript answers a chat action. Backend failures are already in
// the transcript as an error reply, so only rejected input is reported as
// an error.
func (h *Handlers) renderTranscript(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errors.ErrInvalidRequest) {
		h.renderer.renderError(w, r, err)
		return
	}
	if err != nil && !stderrors.Is(err, chat.ErrReset) {
		h.log.Warn().Err(err).Msg("chat request failed")
	}

	// Fragment request: return the message list
	if isFragment(r) {
		h.renderer.renderBlock(w, http.StatusOK, "chat", "messages", h.chatData())
		return
	}

	// JSON request
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"messages": h.chat.Transcript()})
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/chatbot", http.StatusSeeOther)
}

func (h *Handlers) chatData() ChatPageData {
	return ChatPageData{
		PageData: h.renderer.page("Legal Assistant", "chatbot"),
		Messages: h.chat.Transcript(),
	}
}

// uploadSource is an audio.Source over an uploaded multipart file.
type uploadSource struct {
	file   multipart.File
	header *multipart.FileHeader
}

func (s uploadSource) Open(context.Context) (io.ReadCloser, error) {
	return s.file, nil
}

func (s uploadSource) Name() string {
	if s.header.Filename == "" {
		return "recording.webm"
	}
	return s.header.Filename
}
