package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	domainaudit "github.com/matiasleandrokruk/agentdesk/internal/domain/audit"
)

func TestActivityHandler_ListAndGet(t *testing.T) {
	t.Parallel()

	svc := domainaudit.NewService(mustOpenDB(t))
	ctx := context.Background()
	entity := "client"
	clientID := "client-1"
	for _, action := range []string{"auth.login", "chat.send_message", "chat.send_message"} {
		if err := svc.LogWithDetails(ctx, "biz-1", "agent-1", domainaudit.ActorTypeAgent, action, &entity, &clientID, nil, domainaudit.OutcomeSuccess); err != nil {
			t.Fatalf("LogWithDetails: %v", err)
		}
	}
	if err := svc.LogWithDetails(ctx, "biz-2", "user-9", domainaudit.ActorTypeUser, "auth.login", nil, nil, nil, domainaudit.OutcomeSuccess); err != nil {
		t.Fatal(err)
	}

	h := NewActivityHandler(svc)
	type listBody struct {
		Data []domainaudit.Event `json:"data"`
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}

	rr := httptest.NewRecorder()
	h.ListActivity(rr, asBusiness(httptest.NewRequest(http.MethodGet, "/api/v1/activity", nil), "biz-1"))
	var all listBody
	decodeBody(t, rr, &all)
	if all.Meta.Total != 3 || len(all.Data) != 3 {
		t.Fatalf("expected 3 events for biz-1, got total=%d len=%d", all.Meta.Total, len(all.Data))
	}

	rr = httptest.NewRecorder()
	h.ListActivity(rr, asBusiness(httptest.NewRequest(http.MethodGet, "/api/v1/activity?action=chat.send_message", nil), "biz-1"))
	var byAction listBody
	decodeBody(t, rr, &byAction)
	if len(byAction.Data) != 2 {
		t.Errorf("expected 2 chat events, got %d", len(byAction.Data))
	}

	rr = httptest.NewRecorder()
	h.ListActivity(rr, asBusiness(httptest.NewRequest(http.MethodGet, "/api/v1/activity?entityType=client&entityId=client-1", nil), "biz-1"))
	var byEntity listBody
	decodeBody(t, rr, &byEntity)
	if len(byEntity.Data) != 3 {
		t.Errorf("expected 3 client events, got %d", len(byEntity.Data))
	}

	id := all.Data[0].ID
	rr = httptest.NewRecorder()
	h.GetActivity(rr, withURLParam(asBusiness(httptest.NewRequest(http.MethodGet, "/x", nil), "biz-1"), "id", id))
	if rr.Code != http.StatusOK {
		t.Errorf("GetActivity status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.GetActivity(rr, withURLParam(asBusiness(httptest.NewRequest(http.MethodGet, "/x", nil), "biz-2"), "id", id))
	if rr.Code != http.StatusNotFound {
		t.Errorf("cross-business GetActivity status = %d; want 404", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.GetActivity(rr, withURLParam(asBusiness(httptest.NewRequest(http.MethodGet, "/x", nil), "biz-1"), "id", "not-an-id"))
	if rr.Code != http.StatusNotFound {
		t.Errorf("malformed id GetActivity status = %d; want 404", rr.Code)
	}
}
