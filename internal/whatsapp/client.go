package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"leadfunnel/internal/catalog"
	"leadfunnel/internal/config"
	"leadfunnel/internal/messaging"
)

// Client talks to the WhatsApp Cloud API. It implements
// messaging.ChannelSender.
type Client struct {
	Config  *config.Config
	BaseURL string
	HTTP    *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		Config:  cfg,
		BaseURL: strings.TrimRight(cfg.WhatsAppAPIURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// --- Message Structures ---

type GenericMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	RecipientType    string       `json:"recipient_type,omitempty"`
	Text             *TextObj     `json:"text,omitempty"`
	Template         *TemplateObj `json:"template,omitempty"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewUrl bool   `json:"preview_url,omitempty"`
}

type TemplateObj struct {
	Name       string         `json:"name"`
	Language   LanguageObj    `json:"language"`
	Components []ComponentObj `json:"components,omitempty"`
}

type LanguageObj struct {
	Code string `json:"code"`
}

type ComponentObj struct {
	Type       string         `json:"type"`
	SubType    string         `json:"sub_type,omitempty"`
	Parameters []ParameterObj `json:"parameters"`
	Index      string         `json:"index,omitempty"` // For buttons
}

type ParameterObj struct {
	Type          string `json:"type"`
	ParameterName string `json:"parameter_name,omitempty"`
	Text          string `json:"text,omitempty"`
}

// SendResponse is the Cloud API answer to a message send.
type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID            string `json:"id"`
		MessageStatus string `json:"message_status,omitempty"`
	} `json:"messages"`
}

// --- Helper Functions ---

func (c *Client) sendRequest(ctx context.Context, method, url string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.Config.WhatsAppToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return respBody, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
	}

	return respBody, nil
}

// --- Messaging Methods ---

// SendRawMessage posts msg and returns the provider message id.
func (c *Client) SendRawMessage(ctx context.Context, msg GenericMessage) (string, error) {
	if msg.MessagingProduct == "" {
		msg.MessagingProduct = "whatsapp"
	}
	url := fmt.Sprintf("%s/%s/messages", c.BaseURL, c.Config.PhoneNumberID)
	raw, err := c.sendRequest(ctx, http.MethodPost, url, msg)
	if err != nil {
		return "", err
	}

	var resp SendResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return "", fmt.Errorf("send response without message id: %s", string(raw))
	}
	if status := resp.Messages[0].MessageStatus; status != "" && status != "accepted" {
		log.Printf("[WhatsApp] message %s to %s returned status %q", resp.Messages[0].ID, msg.To, status)
	}
	return resp.Messages[0].ID, nil
}

func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	msg := GenericMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text: &TextObj{
			Body: body,
		},
	}
	return c.SendRawMessage(ctx, msg)
}

// SendTemplate sends an approved template by name. Params with a name are
// sent as named body parameters, the rest positionally.
func (c *Client) SendTemplate(ctx context.Context, to string, tm messaging.TemplateMessage) (string, error) {
	locale := tm.Locale
	if locale == "" {
		locale = c.Config.DefaultLocale
	}
	tpl := &TemplateObj{
		Name:     tm.Name,
		Language: LanguageObj{Code: locale},
	}
	if len(tm.Params) > 0 {
		params := make([]ParameterObj, 0, len(tm.Params))
		for _, p := range tm.Params {
			params = append(params, ParameterObj{Type: "text", ParameterName: p.Name, Text: p.Value})
		}
		tpl.Components = []ComponentObj{{Type: "body", Parameters: params}}
	}
	return c.SendRawMessage(ctx, GenericMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template:         tpl,
	})
}

// --- Media Methods ---

// RetrieveMediaURL resolves an inbound media id to its short-lived download URL.
func (c *Client) RetrieveMediaURL(ctx context.Context, mediaID string) (string, error) {
	url := fmt.Sprintf("%s/%s", c.BaseURL, mediaID)
	resp, err := c.sendRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp, &obj); err != nil {
		return "", err
	}
	return obj.URL, nil
}

// --- Template Management Methods ---

type templateList struct {
	Data []struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Language   string `json:"language"`
		Category   string `json:"category"`
		Status     string `json:"status"`
		Components []struct {
			Type    string `json:"type"`
			Text    string `json:"text"`
			Buttons []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"buttons"`
		} `json:"components"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// ListTemplates pages through the business account's message templates.
func (c *Client) ListTemplates(ctx context.Context) ([]catalog.RemoteTemplate, error) {
	url := fmt.Sprintf("%s/%s/message_templates?limit=100", c.BaseURL, c.Config.WhatsAppBusinessAccountID)
	var out []catalog.RemoteTemplate
	for url != "" {
		raw, err := c.sendRequest(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		var page templateList
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("decode templates: %w", err)
		}
		for _, d := range page.Data {
			rt := catalog.RemoteTemplate{
				ID:       d.ID,
				Name:     d.Name,
				Language: d.Language,
				Category: d.Category,
				Status:   d.Status,
			}
			for _, comp := range d.Components {
				switch strings.ToUpper(comp.Type) {
				case "BODY":
					rt.Body = comp.Text
				case "BUTTONS":
					for _, b := range comp.Buttons {
						rt.Buttons = append(rt.Buttons, b.Text)
					}
				}
			}
			out = append(out, rt)
		}
		url = page.Paging.Next
	}
	return out, nil
}

var _ messaging.ChannelSender = (*Client)(nil)
