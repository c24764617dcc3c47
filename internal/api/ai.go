package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/hpungsan/juris/internal/audio"
	"github.com/hpungsan/juris/internal/errors"
)

// AI endpoint paths.
const (
	PathChat      = "/api/ai/chat"
	PathSpeech    = "/api/ai/speech"
	PathSummarize = "/api/ai/summarize"
)

// ChatReply is the assistant's answer to a text or voice message.
type ChatReply struct {
	Reply      string          `json:"reply"`
	UsedTools  bool            `json:"used_tools,omitempty"`
	ToolUsed   string          `json:"tool_used,omitempty"`
	SearchInfo json.RawMessage `json:"search_info,omitempty"`
}

// Chat sends a text message to the assistant.
func (c *Client) Chat(ctx context.Context, message string) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errors.NewInvalidRequest("message is required")
	}
	r, err := jsonRequest(http.MethodPost, PathChat, map[string]string{"message": message})
	if err != nil {
		return nil, err
	}
	return c.decodeReply(ctx, r)
}

// Speech uploads a voice recording as the multipart field "audio".
func (c *Client) Speech(ctx context.Context, clip *audio.Clip) (*ChatReply, error) {
	if clip == nil || len(clip.Data) == 0 {
		return nil, errors.NewInvalidRequest("audio is required")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, clip.Name))
	h.Set("Content-Type", clip.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := mw.Close(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return c.decodeReply(ctx, request{
		method:      http.MethodPost,
		path:        PathSpeech,
		body:        bytes.NewReader(body.Bytes()),
		contentType: mw.FormDataContentType(),
	})
}

func (c *Client) decodeReply(ctx context.Context, r request) (*ChatReply, error) {
	var reply ChatReply
	if err := c.decodeJSON(ctx, r, &reply); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply.Reply) == "" {
		return nil, errors.NewMalformedResponse(r.path, "missing reply")
	}
	return &reply, nil
}

// SummarizeJudgment asks the assistant for a summary of one judgment.
func (c *Client) SummarizeJudgment(ctx context.Context, id string) (string, error) {
	esc, err := escapeID(id)
	if err != nil {
		return "", err
	}
	path := PathSummarize + "/" + esc

	var out struct {
		Summary *string `json:"summary"`
	}
	if err := c.decodeJSON(ctx, request{method: http.MethodPost, path: path}, &out); err != nil {
		return "", err
	}
	if out.Summary == nil {
		return "", errors.NewMalformedResponse(path, "missing summary")
	}
	return *out.Summary, nil
}

// SummarizeVideo is not offered by the backend yet; no request is made.
func (c *Client) SummarizeVideo(_ context.Context, videoURL string) (string, error) {
	if strings.TrimSpace(videoURL) == "" {
		return "", errors.NewInvalidRequest("video url is required")
	}
	return "", errors.NewNotImplemented("video summarization")
}
