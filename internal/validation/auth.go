package validation

import (
	"strings"

	"github.com/aryan0dhankhar/paymentsportal/internal/security/password"
)

// RegisterInput is a validated self-service customer registration.
type RegisterInput struct {
	FirstName string
	Surname   string
	IDNumber  string
	Username  string
	Password  string
}

type registerBody struct {
	FirstName *string `json:"firstName"`
	Surname   *string `json:"surname"`
	IDNumber  *string `json:"idNumber"`
	Username  *string `json:"username"`
	Password  *string `json:"password"`
}

// Register validates POST /api/auth/register.
func Register(in Input) (RegisterInput, error) {
	c := &checker{}
	var body registerBody
	if !c.decodeBody(in.Body, &body) {
		return RegisterInput{}, c.err()
	}
	out := RegisterInput{
		FirstName: c.field("body.firstName", body.FirstName).trim().required().match(PersonNameRe, "Invalid first name").value(),
		Surname:   c.field("body.surname", body.Surname).trim().required().match(PersonNameRe, "Invalid surname").value(),
		IDNumber:  c.field("body.idNumber", body.IDNumber).trim().required().match(IDNumberRe, "ID number must be 13 digits").value(),
		Username:  c.field("body.username", body.Username).trim().lower().required().match(UsernameRe, "Username must be 4-20 letters, digits or underscores").value(),
		Password:  c.password("body.password", body.Password),
	}
	return out, c.err()
}

// LoginInput is a validated credential pair.
type LoginInput struct {
	Username string
	Password string
}

type loginBody struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// Login validates POST /api/auth/login. Only presence and size are checked
// so that the response does not reveal which rule a stored credential breaks.
func Login(in Input) (LoginInput, error) {
	c := &checker{}
	var body loginBody
	if !c.decodeBody(in.Body, &body) {
		return LoginInput{}, c.err()
	}
	out := LoginInput{
		Username: c.field("body.username", body.Username).trim().lower().required().max(20).value(),
		Password: c.field("body.password", body.Password).required().max(maxPasswordLen).value(),
	}
	if out.Username == "" && !c.hasPath("body.username") {
		c.add("body.username", CodeTooSmall, "Required")
	}
	if out.Password == "" && !c.hasPath("body.password") {
		c.add("body.password", CodeTooSmall, "Required")
	}
	return out, c.err()
}

// ChangePasswordInput is a validated self-service password change.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
}

type changePasswordBody struct {
	CurrentPassword *string `json:"currentPassword"`
	NewPassword     *string `json:"newPassword"`
}

// ChangePassword validates POST /api/user/password.
func ChangePassword(in Input) (ChangePasswordInput, error) {
	c := &checker{}
	var body changePasswordBody
	if !c.decodeBody(in.Body, &body) {
		return ChangePasswordInput{}, c.err()
	}
	out := ChangePasswordInput{
		CurrentPassword: c.field("body.currentPassword", body.CurrentPassword).required().max(maxPasswordLen).value(),
		NewPassword:     c.password("body.newPassword", body.NewPassword),
	}
	return out, c.err()
}

// password applies the strength policy, reporting each failed rule.
func (c *checker) password(path string, v *string) string {
	f := c.field(path, v).required().max(maxPasswordLen)
	if f.failed {
		return ""
	}
	report := password.CheckPolicy(f.value())
	if report.OK {
		return f.value()
	}
	var missing []string
	if !report.Length {
		missing = append(missing, "at least 12 characters")
	}
	if !report.Upper {
		missing = append(missing, "an uppercase letter")
	}
	if !report.Lower {
		missing = append(missing, "a lowercase letter")
	}
	if !report.Digit {
		missing = append(missing, "a digit")
	}
	if !report.Special {
		missing = append(missing, "a symbol")
	}
	c.add(path, CodeInvalidString, "Password needs "+strings.Join(missing, ", "))
	return ""
}

func (c *checker) hasPath(path string) bool {
	for _, is := range c.issues {
		if is.Path == path {
			return true
		}
	}
	return false
}
