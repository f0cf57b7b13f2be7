package http

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusAccepted).
		Header("X-Custom", "value").
		BodyString("test").
		Write(w)

	if w.Code != http.StatusAccepted {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusAccepted)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("X-Custom = %q", w.Header().Get("X-Custom"))
	}
}

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(map[string]int{"count": 3}).Write(w)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["count"] != 3 {
		t.Errorf("count = %d, want 3", got["count"])
	}
}

func TestResponseBuilder_JSONFailure(t *testing.T) {
	w := httptest.NewRecorder()
	b := NewResponse().Status(http.StatusCreated).JSON(math.Inf(1))
	if b.Err() == nil {
		t.Fatal("expected an encoding error")
	}
	b.Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestResponseBuilder_Created(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Created("/api/debtors/abc").JSON(map[string]string{"key": "abc"}).Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want 201", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/api/debtors/abc" {
		t.Errorf("Location = %q", loc)
	}

	w = httptest.NewRecorder()
	NewResponse().Created("").Write(w)
	if _, ok := w.Header()["Location"]; ok {
		t.Error("empty location should not set the header")
	}
}

func TestResponseBuilder_Attachment(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Attachment("March 2024 Report.csv", "text/csv; charset=utf-8", []byte("a,b\n")).Write(w)

	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="March 2024 Report.csv"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if w.Body.String() != "a,b\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestSeeOther(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/debtors/k1/interest", nil)
	SeeOther(w, r, "/debtors/k1?flash=interest")

	if w.Code != http.StatusSeeOther {
		t.Errorf("Status code = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/debtors/k1?flash=interest" {
		t.Errorf("Location = %q", loc)
	}
}
