package registrations

import "html/template"

// Browser-facing pages for the confirmation link flow. The endpoint is
// navigated directly from an email, so it renders HTML rather than JSON.

var confirmSuccessPage = template.Must(template.New("confirm_success").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Registration confirmed</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; background: #f4f6f8; margin: 0; }
  .card { max-width: 480px; margin: 10vh auto; background: #fff; border-radius: 12px; padding: 40px; text-align: center; box-shadow: 0 2px 12px rgba(0,0,0,.08); }
  .badge { width: 64px; height: 64px; border-radius: 50%; background: #e6f7ee; color: #14a44d; font-size: 32px; line-height: 64px; margin: 0 auto 16px; }
  h1 { font-size: 22px; color: #1f2937; }
  p { color: #6b7280; line-height: 1.5; }
  .sessions { text-align: left; margin-top: 24px; padding: 0; list-style: none; }
  .sessions li { padding: 10px 14px; border: 1px solid #e5e7eb; border-radius: 8px; margin-bottom: 8px; color: #374151; }
</style>
</head>
<body>
<div class="card">
  <div class="badge">&#10003;</div>
  <h1>You're confirmed, {{.FullName}}!</h1>
  <p>Your registration for <strong>{{.ConferenceName}}</strong> is confirmed.
  A confirmation email with your QR codes is on its way to <strong>{{.Email}}</strong>.</p>
  <ul class="sessions">
    {{range .Sessions}}<li>{{.Title}} &mdash; {{.Room}}</li>{{end}}
  </ul>
</div>
</body>
</html>`))

var confirmErrorPage = template.Must(template.New("confirm_error").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Confirmation failed</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; background: #f4f6f8; margin: 0; }
  .card { max-width: 480px; margin: 10vh auto; background: #fff; border-radius: 12px; padding: 40px; text-align: center; box-shadow: 0 2px 12px rgba(0,0,0,.08); }
  .badge { width: 64px; height: 64px; border-radius: 50%; background: #fdecea; color: #dc3545; font-size: 32px; line-height: 64px; margin: 0 auto 16px; }
  h1 { font-size: 22px; color: #1f2937; }
  p { color: #6b7280; line-height: 1.5; }
</style>
</head>
<body>
<div class="card">
  <div class="badge">&#10007;</div>
  <h1>{{.Title}}</h1>
  <p>{{.Message}}</p>
</div>
</body>
</html>`))

type confirmSuccessData struct {
	FullName       string
	Email          string
	ConferenceName string
	Sessions       []confirmSessionData
}

type confirmSessionData struct {
	Title string
	Room  string
}

type confirmErrorData struct {
	Title   string
	Message string
}
