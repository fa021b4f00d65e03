package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide writes step-by-step instructions for copying the
// authorization token out of a logged-in browser session
func ShowTokenGuide(w io.Writer) {
	rule := strings.Repeat("=", 80)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "AUTHORIZATION TOKEN GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "fanslydl signs its API requests with the token of a logged-in browser session.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "STEP 1: Log in at https://fansly.com in your browser")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Open Developer Tools")
	fmt.Fprintln(w, "   - Chrome/Edge/Brave/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Open the Console tab and run:")
	fmt.Fprintln(w, `   JSON.parse(localStorage.getItem("session_active_session")).token`)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 4: Copy the printed value without the quotes")
	fmt.Fprintln(w, "   - It is a long string, usually more than 50 characters")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 5 (optional): Copy your user agent")
	fmt.Fprintln(w, "   - Run navigator.userAgent in the same console")
	fmt.Fprintln(w, "   - Requests look most natural with the browser the token came from")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SECURITY WARNING:")
	fmt.Fprintln(w, "   - The token gives full access to your account")
	fmt.Fprintln(w, "   - Never share it; logging out in the browser invalidates it")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// ShowQuickTokenGuide writes a one-line reminder for experienced users
func ShowQuickTokenGuide(w io.Writer) {
	fmt.Fprintln(w, "\nQuick guide: F12 -> Console -> JSON.parse(localStorage.getItem(\"session_active_session\")).token")
	fmt.Fprintln(w, "   Run 'fanslydl auth login --guide' for detailed instructions")
}
