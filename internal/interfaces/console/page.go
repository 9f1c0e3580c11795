package console

// Page wraps a screen in a gate and falls back to the access denied view.
type Page struct {
	Title   string
	Gate    Gate
	Content View
	Styles  Styles
}

func NewPage(title string, gate Gate, content View) Page {
	return Page{Title: title, Gate: gate, Content: content, Styles: DefaultStyles()}
}

func (p Page) View() string {
	protected := ViewFunc(func() string {
		header := p.Styles.Title.Render(p.Title)
		if p.Content == nil {
			return header
		}
		return header + "\n\n" + p.Content.View()
	})
	return p.Gate.Render(protected, AccessDeniedView{Styles: p.Styles})
}
