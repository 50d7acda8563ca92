package main

import (
	"errors"
	"io"
	"reflect"
	"testing"

	xerrors "order-router/internal/xpkg/errors"
)

func TestSplitGlobalArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantGlobal []string
		wantRest   []string
	}{
		{"mode only", []string{"--mode=os", "--port", "8080"}, []string{"--mode=os"}, []string{"--port", "8080"}},
		{"separate value", []string{"--mode", "aa", "--once"}, []string{"--mode", "aa"}, []string{"--once"}},
		{"log level first", []string{"--log-level", "DEBUG", "--mode=rp"}, []string{"--log-level", "DEBUG", "--mode=rp"}, []string{}},
		{"no mode", []string{"--port", "1"}, []string{}, []string{"--port", "1"}},
		{"empty", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			global, rest := splitGlobalArgs(tt.args)
			if len(global) != len(tt.wantGlobal) || (len(global) > 0 && !reflect.DeepEqual(global, tt.wantGlobal)) {
				t.Errorf("global = %v, want %v", global, tt.wantGlobal)
			}
			if len(rest) != len(tt.wantRest) || (len(rest) > 0 && !reflect.DeepEqual(rest, tt.wantRest)) {
				t.Errorf("rest = %v, want %v", rest, tt.wantRest)
			}
		})
	}
}

func TestParseGlobal(t *testing.T) {
	_, mode, level, rest, err := parseGlobal([]string{"--log-level=DEBUG", "--mode=ns", "--queue", "q"}, io.Discard)
	if err != nil {
		t.Fatalf("parseGlobal: %v", err)
	}
	if mode != "ns" || level != "DEBUG" || !reflect.DeepEqual(rest, []string{"--queue", "q"}) {
		t.Errorf("mode=%q level=%q rest=%v", mode, level, rest)
	}

	if _, _, _, _, err := parseGlobal([]string{"--help"}, io.Discard); !errors.Is(err, xerrors.ErrHelp) {
		t.Errorf("--help err = %v, want ErrHelp", err)
	}

	_, _, _, rest, err = parseGlobal([]string{"--help", "--mode=os"}, io.Discard)
	if err != nil || !reflect.DeepEqual(rest, []string{"--help"}) {
		t.Errorf("service help: rest=%v err=%v", rest, err)
	}
}

func TestLookup(t *testing.T) {
	if svc, err := lookup("aa"); err != nil || svc.name != "auto-assigner" {
		t.Errorf("lookup(aa) = %+v, %v", svc, err)
	}
	if _, err := lookup(""); !errors.Is(err, xerrors.ErrModeFlag) {
		t.Errorf("lookup(\"\") = %v, want ErrModeFlag", err)
	}
	if _, err := lookup("kitchen"); !errors.Is(err, xerrors.ErrUnknownService) {
		t.Errorf("lookup(kitchen) = %v, want ErrUnknownService", err)
	}
}
