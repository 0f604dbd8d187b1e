package contrast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinRatioFor(t *testing.T) {
	tests := []struct {
		name   string
		size   float64
		weight string
		want   float64
	}{
		{name: "body text", size: 16, weight: "400", want: MinTextRatio},
		{name: "24px regular is large", size: 24, weight: "400", want: MinLargeTextRatio},
		{name: "bold 19px is large", size: 19, weight: "700", want: MinLargeTextRatio},
		{name: "bold keyword", size: 19, weight: "bold", want: MinLargeTextRatio},
		{name: "semi-bold 19px is not large", size: 19, weight: "600", want: MinTextRatio},
		{name: "bold 16px is not large", size: 16, weight: "700", want: MinTextRatio},
		{name: "unset weight", size: 20, weight: "", want: MinTextRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MinRatioFor(tt.size, tt.weight))
		})
	}
}
