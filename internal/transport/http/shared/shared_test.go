package shared

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest("GET", "/slips?limit=500&offset=-1", nil)
	page := ParsePagination(req, 50, 200)
	if page.Limit != 200 || page.Offset != 0 {
		t.Fatalf("unexpected pagination %+v", page)
	}

	req = httptest.NewRequest("GET", "/slips?limit=20&page=3", nil)
	page = ParsePagination(req, 50, 200)
	if page.Offset != 40 {
		t.Fatalf("expected page 3 to start at 40, got %d", page.Offset)
	}
	if meta := page.Meta(75); meta.Total != 75 || meta.Limit != 20 || meta.Offset != 40 {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestValidatorPeriod(t *testing.T) {
	v := NewValidator()
	period, ok := v.Period("period", "", 3, 2024)
	if !ok || period.Year != 2024 || period.Month != time.March {
		t.Fatalf("expected 2024-03, got %v ok=%v", period, ok)
	}
	period, ok = v.Period("period", "2024-11", 0, 0)
	if !ok || period.Month != time.November {
		t.Fatalf("expected 2024-11, got %v ok=%v", period, ok)
	}
	if v.HasIssues() {
		t.Fatalf("unexpected issues %v", v.Issues())
	}

	v.Period("period", "", 13, 2024)
	v.Period("period", "", 0, 0)
	if issues := v.Issues(); len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", issues)
	}
}

func TestValidatorDecimal(t *testing.T) {
	v := NewValidator()
	if value, ok := v.Decimal("income", "1200.50"); !ok || value.String() != "1200.5" {
		t.Fatalf("unexpected value %s ok=%v", value, ok)
	}
	v.Decimal("income", "-1")
	v.Decimal("income", "abc")
	if len(v.Issues()) != 2 {
		t.Fatalf("expected 2 issues, got %v", v.Issues())
	}
}

func TestRejectWritesValidationError(t *testing.T) {
	v := NewValidator()
	v.Required("employeeId", "", "is required")
	rec := httptest.NewRecorder()
	if !v.Reject(rec, "req") {
		t.Fatalf("expected reject")
	}
	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
