package render

const lessonTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Subject}}</title>
</head>
<body style="margin:0;padding:0;background:#f6f6f6;font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;color:#1a1a1a;">
{{- if .Preheader}}
<div style="display:none;max-height:0;overflow:hidden;opacity:0;">{{.Preheader}}</div>
{{- end}}
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:24px;">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;padding:32px;">
<tr><td>
{{- if .WorkshopImage}}
<img src="{{.WorkshopImage}}" alt="{{.WorkshopTitle}}" width="536" style="display:block;max-width:100%;border-radius:6px;margin-bottom:16px;">
{{- end}}
<p style="font-size:13px;text-transform:uppercase;letter-spacing:.05em;color:#666;margin:0 0 8px;">{{.WorkshopTitle}}{{if .LessonCount}} &middot; Lesson {{.LessonNumber}} of {{.LessonCount}}{{end}}</p>
<h1 style="font-size:24px;margin:0 0 24px;">{{.Subject}}</h1>
<p style="font-size:16px;line-height:1.6;">{{.Greeting}}</p>
{{- if .Summary}}
<p style="font-size:16px;line-height:1.6;color:#444;">{{.Summary}}</p>
{{- end}}
{{- range .Blocks}}
{{- if eq .Type "heading"}}
<h2 style="font-size:20px;margin:28px 0 12px;">{{.Text}}</h2>
{{- else if eq .Type "quote"}}
<blockquote style="border-left:4px solid #ddd;margin:16px 0;padding:4px 16px;color:#555;">{{.Text}}</blockquote>
{{- else if eq .Type "list"}}
<ul style="font-size:16px;line-height:1.6;">
{{- range .Items}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- else if eq .Type "code"}}
<pre style="background:#f3f3f3;border-radius:4px;padding:12px;overflow:auto;font-size:14px;"><code>{{.Text}}</code></pre>
{{- else}}
<p style="font-size:16px;line-height:1.6;">{{.Text}}</p>
{{- end}}
{{- end}}
{{- if .WebURL}}
<p style="margin-top:32px;"><a href="{{.WebURL}}" style="color:#2563eb;">Read on the web</a></p>
{{- end}}
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>
`

const confirmTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Confirm your subscription</title>
</head>
<body style="margin:0;padding:24px;background:#f6f6f6;font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;color:#1a1a1a;">
<table role="presentation" width="600" align="center" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;padding:32px;">
<tr><td>
<p style="font-size:16px;line-height:1.6;">{{.Greeting}}</p>
<p style="font-size:16px;line-height:1.6;">Please confirm you want to receive {{if .WorkshopTitle}}<strong>{{.WorkshopTitle}}</strong>{{else}}these emails{{end}}.</p>
<p style="margin:24px 0;"><a href="{{.ConfirmURL}}" style="background:#2563eb;color:#ffffff;padding:12px 20px;border-radius:6px;text-decoration:none;">Confirm subscription</a></p>
<p style="font-size:13px;color:#666;">This link expires in 48 hours. If you did not sign up, ignore this email.</p>
</td></tr>
</table>
</body>
</html>
`
