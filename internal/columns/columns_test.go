package columns

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ryabkov82/table-merger/internal/table"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in   table.Scalar
		want string
	}{
		{table.String(""), Unnamed},
		{table.Empty(), Unnamed},
		{table.Number(0), Unnamed},
		{table.Bool(false), Unnamed},
		{table.String("First Name!"), "First_Name"},
		{table.String("  a   b  "), "a_b"},
		{table.String("a ! b"), "a__b"},
		{table.String("!!!"), Unnamed},
		{table.String("Zip-Code\t(US)"), "Zip-Code_US"},
		{table.String("Город отправки"), "Город_отправки"},
		{table.String("Price, $"), "Price_"},
		{table.Number(2024), "2024"},
		{table.Bool(true), "true"},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

// ASCII-заголовки чистятся как \w/\s/- регулярным выражением. В отличие от
// него буквы и цифры других алфавитов сохраняются, поэтому "Café" не
// превращается в "Caf".
func TestCleanStringASCIIAndUnicodeLetters(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Order #42 (net)", "Order_42_net"},
		{"e-mail_address", "e-mail_address"},
		{"a.b/c:d", "abcd"},
		{"  tab\tand\nnewline ", "tab_and_newline"},
		{"Café", "Café"},
		{"Имя клиента", "Имя_клиента"},
		{"数量", "数量"},
		{"€uro – total", "uro__total"},
		{"½", Unnamed},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanString(tt.in))
		})
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{"", "First Name!", "  a   b  ", "a ! b", "x--y__z", "#1 total", "  ", "Unnamed Column"}
	for _, in := range inputs {
		once := Clean(table.String(in))
		assert.Equal(t, once, Clean(table.String(once)), "input %q", in)
	}
}

func TestCleanRow(t *testing.T) {
	got := CleanRow(table.Strings("Name", "", "Name!"))
	assert.Equal(t, []string{"Name", Unnamed, "Name"}, got)
}

func TestIntersect(t *testing.T) {
	a := []string{"Name", "Age", "City"}
	b := []string{"Name", "City", "Zip"}
	c := []string{"City", "Name", "Name", "Phone"}

	assert.Equal(t, []string{}, Intersect())
	assert.Equal(t, []string{"Age", "City", "Name"}, Intersect(a))
	assert.Equal(t, []string{"City", "Name"}, Intersect(a, b))
	assert.Equal(t, []string{}, Intersect(a, []string{"zip"}))

	t.Run("commutative", func(t *testing.T) {
		assert.Equal(t, Intersect(a, b), Intersect(b, a))
		assert.Equal(t, Intersect(a, b, c), Intersect(c, b, a))
	})
	t.Run("associative", func(t *testing.T) {
		assert.Equal(t, Intersect(Intersect(a, b), c), Intersect(a, Intersect(b, c)))
	})
	t.Run("self", func(t *testing.T) {
		assert.Equal(t, Intersect(c), Intersect(c, c))
		assert.Equal(t, []string{"City", "Name", "Phone"}, Intersect(c, c))
	})
	t.Run("case sensitive ordinal order", func(t *testing.T) {
		assert.Equal(t, []string{"B", "a"}, Intersect([]string{"a", "B"}, []string{"B", "a", "c"}))
	})
}
