package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCPF(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{"valid", "52998224725", true},
		{"valid another", "11144477735", true},
		{"wrong first check digit", "52998224715", false},
		{"wrong second check digit", "52998224726", false},
		{"too short", "5299822472", false},
		{"too long", "529982247250", false},
		{"formatted", "529.982.247-25", false},
		{"letters", "5299822472a", false},
		{"same digits", "11111111111", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CPF(tt.number)

			if tt.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestCPFCheckDigit(t *testing.T) {
	t.Parallel()

	require.Equal(t, 2, CPFCheckDigit([]int{5, 2, 9, 9, 8, 2, 2, 4, 7}))
	require.Equal(t, 5, CPFCheckDigit([]int{5, 2, 9, 9, 8, 2, 2, 4, 7, 2}))
}

func TestAccountNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		number string
		valid  bool
	}{
		{"1001", true},
		{"7", true},
		{"12345678901234567890", true},
		{"123456789012345678901", false},
		{"", false},
		{"10a1", false},
		{"-1001", false},
		{" 1001", false},
	}

	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			err := AccountNumber(tt.number)

			if tt.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
