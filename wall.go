package bouncer

import (
	"context"
	"html/template"
	"strings"
)

// ChallengeView carries what a challenge page needs from the engine.
type ChallengeView struct {
	// Secret is the active challenge secret. Renderers that draw a captcha
	// image derive the picture from it; the submitted answer must match it
	// exactly.
	Secret string

	// Failed reports that a previous answer was rejected, so the page can
	// show an error message.
	Failed bool
}

// WallRenderer produces the markup served on blocked and challenged
// requests. Page generation is a collaborator concern; the engine only
// defines the contract and ships a minimal default so the middleware works
// out of the box.
//
// Implementations should be safe for concurrent use.
type WallRenderer interface {
	RenderBlocked(ctx context.Context) (string, error)
	RenderChallenge(ctx context.Context, view ChallengeView) (string, error)
}

var blockedWallTemplate = template.Must(template.New("blocked").Parse(`<!DOCTYPE html>
<html>
<head><title>Oops..</title></head>
<body>
<h1>Oh!</h1>
<p>This page is protected against cyber attacks and your IP has been banned by our system.</p>
</body>
</html>
`))

// The default challenge page prints the secret for the client to type back.
// Production hosts replace this with a renderer that turns the secret into a
// captcha image.
var challengeWallTemplate = template.Must(template.New("challenge").Parse(`<!DOCTYPE html>
<html>
<head><title>Oops..</title></head>
<body>
<h1>Hmm, sorry but...</h1>
<p>Please complete the security check.</p>
<p><code>{{.Secret}}</code></p>
{{if .Failed}}<p>Please try again.</p>{{end}}
<form method="POST">
<input type="text" name="captcha_answer" placeholder="Type here..." autocomplete="off">
<button type="submit">CONTINUE</button>
<button type="submit" name="refresh" value="1">refresh</button>
</form>
</body>
</html>
`))

// defaultWallRenderer is used when no renderer is configured.
type defaultWallRenderer struct{}

func (defaultWallRenderer) RenderBlocked(context.Context) (string, error) {
	var page strings.Builder
	if err := blockedWallTemplate.Execute(&page, nil); err != nil {
		return "", err
	}
	return page.String(), nil
}

func (defaultWallRenderer) RenderChallenge(_ context.Context, view ChallengeView) (string, error) {
	var page strings.Builder
	if err := challengeWallTemplate.Execute(&page, view); err != nil {
		return "", err
	}
	return page.String(), nil
}
