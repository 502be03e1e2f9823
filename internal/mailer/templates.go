package mailer

import "html/template"

var verificationTemplate = template.Must(template.New("verification").Parse(`
<p>Hi {{.FullName}},</p>
<p>Thanks for registering for <strong>{{.Conference}}</strong>. Please confirm
your registration by {{.Expires}}:</p>
<p><a href="{{.ConfirmURL}}">Confirm my registration</a></p>
<p>One click confirms every session you selected. If you did not register,
you can ignore this email.</p>
`))

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`
<p>Hi {{.FullName}},</p>
<p>Your registration for <strong>{{.Conference}}</strong> is confirmed.
Your sessions:</p>
{{range .Items}}
<div style="margin-bottom:16px">
  <p><strong>{{.Title}}</strong><br>
  {{.Starts}}{{if .Room}} &middot; {{.Room}}{{end}}</p>
  <p>Show this code at the door:</p>
  <img src="{{.QR}}" alt="check-in code" width="200" height="200">
</div>
{{end}}
<p>See you there!</p>
`))

var confirmationReminderTemplate = template.Must(template.New("confirmation_reminder").Parse(`
<p>Hi {{.FullName}},</p>
<p>Your registration for <strong>{{.Conference}}</strong> is still waiting
for confirmation{{if .Expires}} (link valid until {{.Expires}}){{end}}:</p>
<p><a href="{{.ConfirmURL}}">Confirm my registration</a></p>
<p>Unconfirmed registrations are released automatically.</p>
`))

var sessionReminderTemplate = template.Must(template.New("session_reminder").Parse(`
<p>Hi {{.FullName}},</p>
<p><strong>{{.Session.Title}}</strong> at {{.Conference}} starts {{.Lead}},
on {{.Starts}}{{if .Session.Room}} in {{.Session.Room}}{{end}}.</p>
<p>Your check-in code:</p>
<img src="{{.QRCode}}" alt="check-in code" width="200" height="200">
`))

var certificateTemplate = template.Must(template.New("certificate").Parse(`
<p>Hi {{.FullName}},</p>
<p>Thank you for attending <strong>{{.Conference}}</strong>. Your CME
attendance certificate is attached.</p>
`))
