package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"license.pdf", "license.pdf"},
		{"my license (1).pdf", "my_license_1_.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\rider\rc.jpg`, "rc.jpg"},
		{"...", "file"},
		{"", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SafeFileName(tt.in); got != tt.want {
				t.Errorf("SafeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUploadKey(t *testing.T) {
	now := time.UnixMilli(1760000000123)
	got := UploadKey("team_member", 42, "waiver form.pdf", now)
	want := "uploads/team_member/42/1760000000123-waiver_form.pdf"
	if got != want {
		t.Errorf("UploadKey = %q, want %q", got, want)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Options{Region: "ap-south-1"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestPresign(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Options{
		Region:          "ap-south-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		Bucket:          "advenduro-docs",
		Endpoint:        "http://localhost:9000",
		SSE:             "AES256",
	})
	if err != nil {
		t.Fatal(err)
	}

	put, err := p.PresignPut(ctx, "uploads/team/1/1-a.pdf", "application/pdf")
	if err != nil {
		t.Fatal(err)
	}
	if put.Method != "PUT" {
		t.Errorf("method = %s", put.Method)
	}
	u, err := url.Parse(put.URL)
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "localhost:9000" || !strings.HasPrefix(u.Path, "/advenduro-docs/uploads/team/1/") {
		t.Errorf("put url = %s", put.URL)
	}
	if u.Query().Get("X-Amz-Expires") != "600" {
		t.Errorf("expires = %s, want 600", u.Query().Get("X-Amz-Expires"))
	}
	sse := u.Query().Get("X-Amz-Server-Side-Encryption")
	for name, v := range put.Headers {
		if strings.EqualFold(name, "X-Amz-Server-Side-Encryption") {
			sse = v
		}
	}
	if sse != "AES256" {
		t.Errorf("encryption not signed: headers = %v, url = %s", put.Headers, put.URL)
	}

	get, err := p.PresignGet(ctx, "uploads/team/1/1-a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	gu, _ := url.Parse(get.URL)
	if get.Method != "GET" || gu.Query().Get("X-Amz-Expires") != "300" {
		t.Errorf("get = %+v", get)
	}
}
