package api

import (
	"encoding/csv"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leadfunnel/internal/leads"
	"leadfunnel/internal/ledger"
	"leadfunnel/internal/models"

	"github.com/gin-gonic/gin"
)

type LeadHandler struct {
	Leads  *leads.Repository
	Ledger *ledger.Ledger
}

func NewLeadHandler(repo *leads.Repository, led *ledger.Ledger) *LeadHandler {
	return &LeadHandler{Leads: repo, Ledger: led}
}

// lookupLead resolves the :id path parameter and writes the error response
// itself when it cannot.
func lookupLead(c *gin.Context, repo *leads.Repository) (*models.Lead, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead id"})
		return nil, false
	}
	lead, err := repo.FindByID(c.Request.Context(), uint(id))
	if errors.Is(err, leads.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return lead, true
}

func (h *LeadHandler) GetLeads(c *gin.Context) {
	f := leads.ListFilter{
		Channel: models.Channel(c.Query("channel")),
		Stage:   c.Query("stage"),
	}
	if v := c.Query("needs_attention"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "needs_attention must be a boolean"})
			return
		}
		f.NeedsAttention = &b
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))

	list, total, err := h.Leads.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []models.Lead{}
	}
	c.JSON(http.StatusOK, gin.H{"leads": list, "total": total})
}

func (h *LeadHandler) GetLead(c *gin.Context) {
	if lead, ok := lookupLead(c, h.Leads); ok {
		c.JSON(http.StatusOK, lead)
	}
}

type CreateLeadRequest struct {
	Channel    models.Channel `json:"channel"`
	ContactRef string         `json:"contact_ref" binding:"required"`
	Name       string         `json:"lead_name"`
	TgUsername string         `json:"tg_username"`
}

func (h *LeadHandler) CreateLead(c *gin.Context) {
	var req CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Channel == "" {
		req.Channel = models.ChannelWhatsApp
	}
	if req.Channel != models.ChannelWhatsApp && req.Channel != models.ChannelTelegram {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown channel"})
		return
	}

	lead := &models.Lead{
		Channel:    req.Channel,
		ContactRef: strings.TrimSpace(req.ContactRef),
		Name:       req.Name,
		TgUsername: req.TgUsername,
	}
	created, err := h.Leads.Create(c.Request.Context(), lead)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create lead"})
		return
	}
	if !created {
		c.JSON(http.StatusOK, lead)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

// MeetingInput sets one meeting's status; Date is required unless the
// status clears the meeting.
type MeetingInput struct {
	Status models.MeetingStatus `json:"status"`
	Date   *time.Time           `json:"date"`
}

type UpdateLeadRequest struct {
	Name           *string                 `json:"lead_name"`
	FunnelStage    *string                 `json:"funnel_stage"`
	OptedOut       *bool                   `json:"opted_out"`
	NeedsAttention *bool                   `json:"needs_attention"`
	Flags          map[string]bool         `json:"flags"`
	Meetings       map[string]MeetingInput `json:"meetings"`
}

func (r *UpdateLeadRequest) fields() (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if r.Name != nil {
		out["lead_name"] = *r.Name
	}
	if r.FunnelStage != nil {
		out[models.ColFunnelStage] = *r.FunnelStage
	}
	if r.OptedOut != nil {
		out[models.ColOptedOut] = *r.OptedOut
	}
	if r.NeedsAttention != nil {
		out[models.ColNeedsAttention] = *r.NeedsAttention
	}
	for col, v := range r.Flags {
		if !models.IsFlagColumn(col) {
			return nil, errors.New("unknown flag " + col)
		}
		out[col] = v
	}
	for name, m := range r.Meetings {
		t, err := models.ParseMeetingType(name)
		if err != nil {
			return nil, err
		}
		upd, err := models.MeetingUpdate(t, m.Status, m.Date)
		if err != nil {
			return nil, err
		}
		for k, v := range upd {
			out[k] = v
		}
	}
	return out, nil
}

func (h *LeadHandler) UpdateLead(c *gin.Context) {
	lead, ok := lookupLead(c, h.Leads)
	if !ok {
		return
	}
	var req UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields, err := req.fields()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Leads.Update(c.Request.Context(), lead.ID, fields); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update lead"})
		return
	}
	updated, err := h.Leads.FindByID(c.Request.Context(), lead.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *LeadHandler) SwitchNeedsAttention(c *gin.Context) {
	lead, ok := lookupLead(c, h.Leads)
	if !ok {
		return
	}
	next := !lead.NeedsAttention
	if err := h.Leads.Update(c.Request.Context(), lead.ID, map[string]interface{}{models.ColNeedsAttention: next}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update lead"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": lead.ID, "needs_attention": next})
}

func (h *LeadHandler) GetLeadMessages(c *gin.Context) {
	lead, ok := lookupLead(c, h.Leads)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))
	msgs, err := h.Ledger.History(c.Request.Context(), lead.Channel, lead.ContactRef, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// exportPage is the page size ExportLeads reads the table with.
const exportPage = 500

func (h *LeadHandler) ExportLeads(c *gin.Context) {
	ctx := c.Request.Context()
	list, total, err := h.Leads.List(ctx, leads.ListFilter{Limit: exportPage})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=leads.csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"ID", "Channel", "Contact", "Name", "Stage", "BOM", "BOM Date", "Needs Attention", "Opted Out"})
	written := 0
	for len(list) > 0 {
		for _, l := range list {
			bomDate := ""
			if l.BomDate != nil {
				bomDate = l.BomDate.UTC().Format(time.RFC3339)
			}
			_ = w.Write([]string{
				strconv.FormatUint(uint64(l.ID), 10), string(l.Channel), l.ContactRef, l.Name, l.FunnelStage,
				string(l.BomStatus), bomDate,
				strconv.FormatBool(l.NeedsAttention), strconv.FormatBool(l.OptedOut),
			})
		}
		written += len(list)
		if int64(written) >= total {
			break
		}
		// headers are out; a failed page can only end the stream early.
		list, _, err = h.Leads.List(ctx, leads.ListFilter{Limit: exportPage, Offset: written})
		if err != nil {
			log.Printf("[API] lead export stopped after %d of %d rows: %v", written, total, err)
			break
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Printf("[API] lead export: %v", err)
	}
}
