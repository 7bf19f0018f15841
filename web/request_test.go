package web_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adamwoolhether/webshell/web"
	"github.com/adamwoolhether/webshell/web/errs"
)

func TestParamInt64(t *testing.T) {
	testCases := []struct {
		name    string
		value   string
		want    int64
		wantErr bool
	}{
		{name: "valid", value: "9000000000", want: 9000000000},
		{name: "missing", value: "", wantErr: true},
		{name: "not a number", value: "abc", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/v1/downloads/x", nil)
			r.SetPathValue("id", tc.value)

			got, err := web.ParamInt64(r, "id")
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestQueryInt64(t *testing.T) {
	testCases := []struct {
		name    string
		target  string
		want    int64
		wantErr bool
	}{
		{name: "present", target: "/v1/notifications?since=12", want: 12},
		{name: "absent uses default", target: "/v1/notifications", want: -1},
		{name: "invalid", target: "/v1/notifications?since=soon", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.target, nil)

			got, err := web.QueryInt64(r, "since", -1)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

type navigation struct {
	URL string `json:"url" validate:"required"`
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name      string
		body      string
		wantErr   bool
		wantField string
	}{
		{name: "valid", body: `{"url":"tel:123"}`},
		{name: "unknown field", body: `{"url":"tel:123","extra":1}`, wantErr: true},
		{name: "malformed", body: `{"url":`, wantErr: true},
		{name: "missing required", body: `{}`, wantErr: true, wantField: "url"},
		{name: "trailing object", body: `{"url":"tel:1"}{"url":"tel:2"}`, wantErr: true},
		{name: "too large", body: `{"url":"` + strings.Repeat("a", web.MaxBodyBytes) + `"}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/navigations", strings.NewReader(tc.body))

			var nav navigation
			err := web.Decode(r, &nav)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}

			if tc.wantField != "" {
				fields := errs.GetFieldErrors(err).Fields()
				if fields[tc.wantField] != "url is required" {
					t.Errorf("field errors = %v", fields)
				}
			}
		})
	}
}
