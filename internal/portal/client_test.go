package portal

import (
	"testing"
	"time"

	"github.com/RecoveryAshes/LmsArchive/internal/models"
)

func TestAbsoluteURL(t *testing.T) {
	c := NewClient(nil, "https://lms.example.com/", 30*time.Second)

	tests := []struct {
		name string
		href string
		want string
	}{
		{"相对路径", "/course/1234", "https://lms.example.com/course/1234"},
		{"绝对URL原样返回", "https://other.example.com/page", "https://other.example.com/page"},
		{"空链接", "", ""},
		{"不带斜杠的相对路径", "course/5678", "https://lms.example.com/course/5678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.absoluteURL(tt.href); got != tt.want {
				t.Errorf("absoluteURL(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}

func TestClassIDFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"标准课程URL", "https://lms.example.com/course/1234", "1234"},
		{"带尾斜杠", "https://lms.example.com/course/1234/", "1234"},
		{"多级路径", "https://lms.example.com/school/7/course/99", "99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classIDFromURL(tt.url); got != tt.want {
				t.Errorf("classIDFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestSectionURL(t *testing.T) {
	c := NewClient(nil, "https://lms.example.com", 30*time.Second)
	classURL := "https://lms.example.com/course/1234"

	tests := []struct {
		kind models.SectionKind
		want string
	}{
		{models.SectionPages, classURL + "/pages"},
		{models.SectionMessages, classURL + "/updates"},
		{models.SectionAssignments, classURL + "/assignments"},
		{models.SectionDiscussions, classURL + "/discussions"},
		{models.SectionGradebook, classURL + "/grades"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := c.SectionURL(classURL, tt.kind); got != tt.want {
				t.Errorf("SectionURL(%q) = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	c := NewClient(nil, "https://lms.example.com", 30*time.Second)

	if err := c.requireAuth(); err != ErrNotAuthenticated {
		t.Errorf("未登录时 requireAuth() = %v, want ErrNotAuthenticated", err)
	}
	if c.Authenticated() {
		t.Error("未登录时 Authenticated() 应为 false")
	}

	c.authed.Store(true)
	if err := c.requireAuth(); err != nil {
		t.Errorf("已登录时 requireAuth() = %v, want nil", err)
	}
}
