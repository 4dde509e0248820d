package auth

import (
	"testing"
	"time"
)

func TestIssueParseRoundTrip(t *testing.T) {
	pair, err := Issue("student-1", RoleStudent, "classroll", "test-key", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(pair.AccessToken, "test-key", "classroll")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "student-1" || claims.Role != RoleStudent {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseRejectsWrongKeyAndIssuer(t *testing.T) {
	pair, err := Issue("teacher-1", RoleTeacher, "classroll", "test-key", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := Parse(pair.AccessToken, "other-key", "classroll"); err == nil {
		t.Error("Parse accepted a token signed with another key")
	}
	if _, err := Parse(pair.AccessToken, "test-key", "other-issuer"); err == nil {
		t.Error("Parse accepted a token from another issuer")
	}
}
