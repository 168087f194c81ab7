package browse

import (
	"strings"

	"golang.org/x/net/html"
)

// LoginForm describes the login fields found on a page.
type LoginForm struct {
	Action        string
	UsernameField string
	PasswordField string
}

// FindLoginForm scans rendered HTML for a login form. The heuristic: locate
// the first input of type password, then take the nearest preceding text or
// email input in document order as the username field. Returns false when no
// password input exists.
func FindLoginForm(htmlStr string) (LoginForm, bool) {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return LoginForm{}, false
	}

	var form LoginForm
	var lastTextField string
	var found bool

	var walk func(n *html.Node, formAction string)
	walk = func(n *html.Node, formAction string) {
		if found {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "form":
				formAction = attr(n, "action")
			case "input":
				typ := strings.ToLower(attr(n, "type"))
				name := inputName(n)
				switch typ {
				case "text", "email", "tel", "":
					if name != "" {
						lastTextField = name
					}
				case "password":
					form = LoginForm{
						Action:        formAction,
						UsernameField: lastTextField,
						PasswordField: name,
					}
					found = true
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, formAction)
		}
	}
	walk(doc, "")

	return form, found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// inputName prefers the name attribute, falling back to id.
func inputName(n *html.Node) string {
	if name := attr(n, "name"); name != "" {
		return name
	}
	return attr(n, "id")
}
