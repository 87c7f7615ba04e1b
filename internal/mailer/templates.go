package mailer

import (
	"bytes"
	"html/template"
	"strconv"
	"time"
)

const brand = "EduSphere"

const layout = `{{define "layout"}}<div style="font-family: Arial, sans-serif; background-color: #f4f6f8; padding: 30px; text-align: center;">
  <div style="max-width: 550px; margin: auto; background: white; border-radius: 14px; padding: 35px 25px;">
    <h2 style="color: #2e7dff; margin-bottom: 10px;">{{.Title}}</h2>
    {{template "body" .}}
  </div>
  <p style="font-size: 11px; color: #aaa; margin-top: 20px;">&copy; {{.Year}} ` + brand + `. All rights reserved.</p>
</div>{{end}}`

var (
	otpTemplate = mustTemplate(`{{define "body"}}
    <p style="font-size: 15px; color: #555;">Hello <strong>{{.Name}}</strong>,<br>
      We received a request to verify your email for your <strong>` + brand + `</strong> account.</p>
    <div style="background: #f3f4f6; padding: 15px; border-radius: 8px; margin: 20px 0; font-size: 22px; font-weight: bold; letter-spacing: 4px;">{{.Code}}</div>
    <p style="color: #555; font-size: 14px;">This OTP will expire in <strong>{{.Expiry}}</strong>. Please do not share it with anyone.</p>
    <p style="font-size: 12px; color: #888;">If you didn't request this, please ignore this email.</p>
{{end}}`)

	welcomeTemplate = mustTemplate(`{{define "body"}}
    <p style="font-size: 15px; color: #555;">Hi <strong>{{.Name}}</strong>,<br>
      Your ` + brand + ` account has been created successfully.</p>
    {{if .Password}}<div style="background: #f3f4f6; padding: 15px; border-radius: 8px; margin: 20px 0; font-size: 18px; font-weight: bold;">
      Temporary Password: <span style="color: #2e7dff;">{{.Password}}</span></div>
    <p style="color: #555; font-size: 14px;">Please use this password to login and change it immediately.</p>{{end}}
    <a href="{{.URL}}" style="display: inline-block; background: #2e7dff; color: white; padding: 12px 28px; border-radius: 8px; text-decoration: none;">Login to ` + brand + `</a>
    <p style="font-size: 12px; color: #888;">If you did not sign up for ` + brand + `, please ignore this email.</p>
{{end}}`)

	resetTemplate = mustTemplate(`{{define "body"}}
    <p style="font-size: 15px; color: #555;">You recently requested to reset your password for your <strong>` + brand + `</strong> account.</p>
    <a href="{{.URL}}" style="display: inline-block; background: #2e7dff; color: white; padding: 14px 28px; border-radius: 8px; text-decoration: none;">Change My Password</a>
    <p style="color: #555; font-size: 14px;">This link will expire in <strong>{{.Expiry}}</strong>.</p>
    <p style="font-size: 12px; color: #888;">If you did not request this password reset, you can safely ignore this email.</p>
{{end}}`)

	uploadTemplate = mustTemplate(`{{define "body"}}
    <p style="font-size: 15px; color: #555;">Hello <strong>{{.Name}}</strong>,<br>your file was uploaded.</p>
    <p><a href="{{.URL}}">{{.URL}}</a></p>
{{end}}`)
)

type templateData struct {
	Title    string
	Name     string
	Code     string
	Password string
	URL      string
	Expiry   string
	Year     int
}

func mustTemplate(body string) *template.Template {
	return template.Must(template.Must(template.New("layout").Parse(layout)).Parse(body))
}

func render(t *template.Template, data templateData) (string, error) {
	data.Year = time.Now().Year()
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// OTPEmail renders the email verification message carrying code.
func OTPEmail(name, code string, ttl time.Duration) (subject, body string, err error) {
	body, err = render(otpTemplate, templateData{
		Title:  "Email Verification",
		Name:   name,
		Code:   code,
		Expiry: humanDuration(ttl),
	})
	return brand + " - Email Verification", body, err
}

// WelcomeEmail renders the account-created message. A non-empty password is
// included as the temporary password of an auto-provisioned account.
func WelcomeEmail(name, loginURL, password string) (subject, body string, err error) {
	body, err = render(welcomeTemplate, templateData{
		Title:    "Welcome to " + brand,
		Name:     name,
		URL:      loginURL,
		Password: password,
	})
	return brand + " - Your Account Has Been Created Successfully", body, err
}

// ResetEmail renders the password reset link message.
func ResetEmail(resetURL string, ttl time.Duration) (subject, body string, err error) {
	body, err = render(resetTemplate, templateData{
		Title:  "Reset Your Password",
		URL:    resetURL,
		Expiry: humanDuration(ttl),
	})
	return "Password verification link", body, err
}

// UploadEmail renders the file-uploaded notification.
func UploadEmail(name, fileURL string) (subject, body string, err error) {
	body, err = render(uploadTemplate, templateData{
		Title: "File Uploaded",
		Name:  name,
		URL:   fileURL,
	})
	return "New File Uploaded", body, err
}

func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return strconv.Itoa(m) + " minutes"
	}
	return d.String()
}
