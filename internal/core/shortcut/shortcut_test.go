package shortcut

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidSpecs(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		mods     Modifier
		key      string
		expected string
	}{
		{"ctrl_alt_letter", "Ctrl+Alt+I", ModCtrl | ModAlt, "I", "Ctrl+Alt+I"},
		{"lowercase_letter_is_upcased", "ctrl+s", ModCtrl, "S", "Ctrl+S"},
		{"modifier_order_is_canonical", "Shift+Ctrl+P", ModCtrl | ModShift, "P", "Ctrl+Shift+P"},
		{"function_key", "Shift+F5", ModShift, "F5", "Shift+F5"},
		{"named_key_alias", "Alt+Return", ModAlt, "Enter", "Alt+Enter"},
		{"page_down_alias", "Ctrl+PageDown", ModCtrl, "PgDown", "Ctrl+PgDown"},
		{"arrow_key", "Meta+left", ModMeta, "Left", "Meta+Left"},
		{"mac_command", "Cmd+Option+K", ModAlt | ModMeta, "K", "Alt+Meta+K"},
		{"bare_key", "F12", ModNone, "F12", "F12"},
		{"highest_function_key", "F35", ModNone, "F35", "F35"},
		{"plus_key", "Ctrl++", ModCtrl, "+", "Ctrl++"},
		{"surrounding_space", "  Ctrl + Alt + I ", ModCtrl | ModAlt, "I", "Ctrl+Alt+I"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.mods, s.Mods)
			assert.Equal(t, tt.key, s.Key)
			assert.Equal(t, tt.expected, s.String())
		})
	}
}

func TestParse_InvalidSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want error
	}{
		{"empty", "", ErrEmptySpec},
		{"blank", "   ", ErrEmptySpec},
		{"unknown_modifier", "Hyper+X", ErrInvalidSpec},
		{"missing_key", "Ctrl+", ErrInvalidSpec},
		{"unknown_named_key", "Ctrl+Banana", ErrInvalidSpec},
		{"function_key_out_of_range", "F99", ErrInvalidSpec},
		{"function_key_zero", "F0", ErrInvalidSpec},
		{"function_key_wraps_int", "Ctrl+F18446744073709551621", ErrInvalidSpec},
		{"function_key_many_digits", "F" + strings.Repeat("9", 40), ErrInvalidSpec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.spec)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("alt+ctrl+i")
	require.NoError(t, err)
	assert.Equal(t, "Ctrl+Alt+I", got)

	_, err = Normalize("Ctrl+Nope")
	assert.Error(t, err)
}

func TestModifierFromName(t *testing.T) {
	assert.Equal(t, ModCtrl, ModifierFromName("Control"))
	assert.Equal(t, ModAlt, ModifierFromName("opt"))
	assert.Equal(t, ModMeta, ModifierFromName("WIN"))
	assert.Equal(t, ModNone, ModifierFromName("fn"))
}
