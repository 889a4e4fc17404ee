package notify

import "html/template"

const baseStyle = `
      body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
      .container { max-width: 600px; margin: 0 auto; padding: 20px; }
      .button { display: inline-block; padding: 12px 24px; background-color: #0070f3; color: white; text-decoration: none; border-radius: 6px; margin: 20px 0; }
      .info-box { background-color: #f5f5f5; padding: 15px; border-radius: 6px; margin: 20px 0; }
      .footer { margin-top: 40px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
`

var ownerRequestTemplate = template.Must(template.New("owner_request").Parse(`<!DOCTYPE html>
<html>
  <head><style>` + baseStyle + `</style></head>
  <body>
    <div class="container">
      <h2>Video Request Notification</h2>
      <p>Hi {{if .OwnerName}}{{.OwnerName}}{{else}}there{{end}},</p>
      <p>Someone is trying to access one of your expired videos:</p>
      <div class="info-box">
        <p><strong>Video:</strong> {{.Filename}}</p>
        <p><strong>Requested by:</strong> {{.Requester}}</p>
        <p><strong>Video ID:</strong> {{.VideoID}}</p>
      </div>
      <p>If you'd like to share this video again, re-upload it from your dashboard. The new link is sent to the requester automatically.</p>
      <a href="{{.DashboardURL}}" class="button">Go to Dashboard</a>
      <div class="footer">
        <p>This is an automated notification from ScreenGrab. You're receiving this because someone requested access to your expired video.</p>
      </div>
    </div>
  </body>
</html>
`))

var videoAvailableTemplate = template.Must(template.New("video_available").Parse(`<!DOCTYPE html>
<html>
  <head><style>` + baseStyle + `</style></head>
  <body>
    <div class="container">
      <h2>Video Now Available!</h2>
      <p>Great news! The video you requested is now available to watch.</p>
      <p><strong>Video:</strong> {{.Filename}}</p>
      <a href="{{.WatchURL}}" class="button">Watch Video</a>
      <p>This video will expire based on the owner's settings, so watch it soon!</p>
      <div class="footer">
        <p>You received this email because you requested access to an expired video on ScreenGrab.</p>
      </div>
    </div>
  </body>
</html>
`))
