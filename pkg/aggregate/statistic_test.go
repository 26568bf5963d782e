package aggregate_test

import (
	"testing"

	"github.com/ishlunc/ishlunc/pkg/aggregate"
)

func TestParseStatistics(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []aggregate.Statistic
		wantErr bool
	}{
		{
			name: "single statistic",
			args: []string{"mean"},
			want: []aggregate.Statistic{aggregate.StatMean},
		},
		{
			name: "comma separated list",
			args: []string{"mean,median"},
			want: []aggregate.Statistic{aggregate.StatMean, aggregate.StatMedian},
		},
		{
			name: "repeated flag",
			args: []string{"max", "min"},
			want: []aggregate.Statistic{aggregate.StatMax, aggregate.StatMin},
		},
		{
			name: "all expands to the supported set",
			args: []string{"all"},
			want: aggregate.SupportedStatistics(),
		},
		{
			name: "duplicates collapse",
			args: []string{"mean", "mean,all"},
			want: aggregate.SupportedStatistics(),
		},
		{
			name: "case and whitespace tolerated",
			args: []string{" Mean , MEDIAN "},
			want: []aggregate.Statistic{aggregate.StatMean, aggregate.StatMedian},
		},
		{
			name:    "unknown statistic",
			args:    []string{"variance"},
			wantErr: true,
		},
		{
			name:    "nothing requested",
			args:    nil,
			wantErr: true,
		},
		{
			name:    "only empty parts",
			args:    []string{",", ""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := aggregate.ParseStatistics(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatistics(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}
