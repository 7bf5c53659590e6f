package envstruct_test

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/doppel/internal/envstruct"
	"github.com/stretchr/testify/require"
)

func TestPopulate(t *testing.T) {
	type args struct {
		v         any
		lookupEnv func(string) (string, bool)
	}
	tests := []struct {
		name    string
		args    args
		want    any
		wantErr error
	}{
		{
			name: "nil",
			args: args{
				v:         nil,
				lookupEnv: func(_ string) (string, bool) { return "", false },
			},
			want:    nil,
			wantErr: envstruct.ErrInvalidValue,
		},
		{
			name: "not pointer",
			args: args{
				v:         struct{}{},
				lookupEnv: func(_ string) (string, bool) { return "", false },
			},
			want:    nil,
			wantErr: envstruct.ErrInvalidValue,
		},
		{
			name: "empty struct",
			args: args{
				v:         &struct{}{},
				lookupEnv: func(_ string) (string, bool) { return "", false },
			},
			want:    &struct{}{},
			wantErr: nil,
		},
		{
			name: "empty env",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					EnvVar string `env:"ENV_VAR"`
				}{},
				lookupEnv: func(_ string) (string, bool) { return "", false },
			},
			want:    nil,
			wantErr: envstruct.ErrEnvNotSet,
		},
		{
			name: "env is set",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					EnvVar string `env:"ENV_VAR"`
				}{},
				lookupEnv: func(_ string) (string, bool) { return "env_var", true },
			},
			want:    &struct{ EnvVar string }{EnvVar: "env_var"},
			wantErr: nil,
		},
		{
			name: "picks correct env variable",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					EnvVar     string `env:"ENV_VAR"`
					EnvVar2    string `env:"ENV_VAR2"`
					OtherValue string
				}{},
				lookupEnv: func(s string) (string, bool) { return strings.ToLower(s), true },
			},
			want: &struct {
				EnvVar     string
				EnvVar2    string
				OtherValue string
			}{EnvVar: "env_var", EnvVar2: "env_var2", OtherValue: ""},
			wantErr: nil,
		},
		{
			name: "handles default value",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					EnvVarDefault string `env:"ENV_VAR_DEFAULT" envDefault:"default"`
				}{},
				lookupEnv: func(_ string) (string, bool) { return "", false },
			},
			want: &struct {
				EnvVarDefault string
			}{EnvVarDefault: "default"},
			wantErr: nil,
		},
		{
			name: "parses int",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					Port int `env:"PORT"`
				}{},
				lookupEnv: func(_ string) (string, bool) { return "4000", true },
			},
			want:    &struct{ Port int }{Port: 4000},
			wantErr: nil,
		},
		{
			name: "rejects malformed int",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					Port int `env:"PORT"`
				}{},
				lookupEnv: func(_ string) (string, bool) { return "not-a-number", true },
			},
			want:    nil,
			wantErr: strconv.ErrSyntax,
		},
		{
			name: "parses bool",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					Verbose bool `env:"VERBOSE"`
				}{},
				lookupEnv: func(_ string) (string, bool) { return "true", true },
			},
			want:    &struct{ Verbose bool }{Verbose: true},
			wantErr: nil,
		},
		{
			name: "parses duration",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					Timeout time.Duration `env:"TIMEOUT"`
				}{},
				lookupEnv: func(_ string) (string, bool) { return "2m30s", true },
			},
			want:    &struct{ Timeout time.Duration }{Timeout: 2*time.Minute + 30*time.Second},
			wantErr: nil,
		},
		{
			name: "duration default",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`
				}{},
				lookupEnv: func(_ string) (string, bool) { return "", false },
			},
			want:    &struct{ Timeout time.Duration }{Timeout: 15 * time.Second},
			wantErr: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := envstruct.Populate(tt.args.v, tt.args.lookupEnv)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.EqualValues(t, tt.want, tt.args.v)
		})
	}
}
