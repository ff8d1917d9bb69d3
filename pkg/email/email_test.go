package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveFullName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ayse.kaya@corp.example", "Ayse Kaya"},
		{"JOHN_DOE@corp.example", "John Doe"},
		{"mehmet@corp.example", "Mehmet"},
		{"ali-veli.can@corp.example", "Ali Veli Can"},
		{"zeynep+ledger@corp.example", "Zeynep"},
		{"@corp.example", "User"},
		{"...@corp.example", "User"},
		{"ömer.şahin@corp.example", "Ömer Şahin"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveFullName(tc.in), tc.in)
	}
}
