package main

import "testing"

func TestResolveRedisAddr(t *testing.T) {
	tests := []struct {
		name      string
		fileValue string
		flagValue string
		flagSet   bool
		want      string
	}{
		{
			name:      "flag default when nothing configured",
			fileValue: "",
			flagValue: "localhost:6379",
			flagSet:   false,
			want:      "localhost:6379",
		},
		{
			name:      "config file wins over flag default",
			fileValue: "redis.internal:6379",
			flagValue: "localhost:6379",
			flagSet:   false,
			want:      "redis.internal:6379",
		},
		{
			name:      "explicit flag wins over config file",
			fileValue: "redis.internal:6379",
			flagValue: "other:6380",
			flagSet:   true,
			want:      "other:6380",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveRedisAddr(tt.fileValue, tt.flagValue, tt.flagSet); got != tt.want {
				t.Fatalf("Got %s, want %s", got, tt.want)
			}
		})
	}
}
