package email

// Template names, also used as the kind label on email metrics.
const (
	KindNewAccount       = "new_account"
	KindPasswordRecovery = "password_recovery"
	KindPasswordChanged  = "password_changed"
)

type newAccountData struct {
	SetupLink string
}

type passwordRecoveryData struct {
	Name      string
	ResetLink string
}

type passwordChangedData struct {
	Name string
}

const emailTemplates = `
{{define "new_account"}}<!DOCTYPE html>
<html>
<body>
    <div>
        <p>Your account has been created.</p>
        <p>Here is your access to the application.</p>
        <p>Follow this <a href="{{.SetupLink}}">link</a> to set up your password and information.</p>
        <br>
        <p>Best regards,</p>
        <p>The Digipilot team.</p>
    </div>
</body>
</html>{{end}}

{{define "password_recovery"}}<!DOCTYPE html>
<html>
<head>
    <title>Reset your password</title>
</head>
<body>
    <div>
        <h3>Hi {{.Name}},</h3>
        <p>Follow this <a href="{{.ResetLink}}">link</a> to change your password.</p>
        <p>You received this email because of a password recovery request submitted on our page.</p>
        <br>
        <p>Best regards,</p>
        <p>The Digipilot team.</p>
    </div>
</body>
</html>{{end}}

{{define "password_changed"}}<!DOCTYPE html>
<html>
<head>
    <title>Password modification</title>
</head>
<body>
    <div>
        <h3>Hi {{.Name}},</h3>
        <p>Your password was successfully modified.</p>
        <br>
        <p>Best regards,</p>
        <p>The Digipilot team.</p>
    </div>
</body>
</html>{{end}}
`
