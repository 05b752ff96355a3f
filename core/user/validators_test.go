package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPasswordPolicy(t *testing.T) {
	saved := commonPasswords
	commonPasswords = []string{"lol@12345", "p@ssw0rd!"}
	t.Cleanup(func() { commonPasswords = saved })

	tests := []struct {
		name    string
		pwd     string
		uname   string
		email   string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1!", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 12!x", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "12345678", wantTag: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcdefgh1", wantTag: pwdComplexityTag},
		{name: "no upper", pwd: "abcdefg1!", wantTag: pwdComplexityTag},
		{name: "no digit", pwd: "Abcdefgh!", wantTag: pwdComplexityTag},
		{name: "similar to username", pwd: "Awesome1!", uname: "awesome", wantTag: pwdAttrSimTag},
		{name: "similar to email", pwd: "Hero@test.cd1", email: "hero@test.cd", wantTag: pwdAttrSimTag},
		{name: "common", pwd: "P@ssw0rd!", wantTag: pwdNoCommonTag},
		{name: "valid", pwd: "Str0ng&Secret", uname: "jdoe", email: "jane@test.cd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTag, checkPasswordPolicy(tt.pwd, "Jane Doe", tt.uname, tt.email))
		})
	}
}
