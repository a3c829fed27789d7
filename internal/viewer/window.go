package viewer

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Window lays out a gallery: thumbnails on the left, the selected artifact
// on the right.
type Window struct {
	gallery *Gallery
	preview *canvas.Image
	title   *widget.RichText
	content fyne.CanvasObject
}

func NewWindow(g *Gallery) *Window {
	w := &Window{gallery: g}
	w.createComponents()
	w.setupLayout()
	return w
}

func (w *Window) createComponents() {
	w.preview = canvas.NewImageFromImage(nil)
	w.preview.FillMode = canvas.ImageFillContain
	w.preview.ScaleMode = canvas.ImageScaleSmooth
	w.preview.SetMinSize(fyne.NewSize(ImageAreaWidth, ImageAreaHeight))

	w.title = widget.NewRichTextFromMarkdown("")
}

func (w *Window) setupLayout() {
	thumbs := container.NewVBox()
	for i, item := range w.gallery.Items() {
		i, item := i, item
		thumb := canvas.NewImageFromImage(item.Thumbnail)
		thumb.FillMode = canvas.ImageFillContain
		thumb.SetMinSize(fyne.NewSize(ThumbnailSize, ThumbnailSize))

		thumbs.Add(container.NewBorder(nil,
			widget.NewButton(item.Title, func() { w.Select(i) }),
			nil, nil, thumb))
	}

	previewContainer := container.NewBorder(w.title, nil, nil, nil, w.preview)

	split := container.NewHSplit(container.NewVScroll(thumbs), previewContainer)
	split.SetOffset(0.2)
	w.content = split

	if w.gallery.Len() > 0 {
		w.Select(0)
	}
}

// Select shows item i in the preview area.
func (w *Window) Select(i int) {
	items := w.gallery.Items()
	if i < 0 || i >= len(items) {
		return
	}
	w.preview.Image = items[i].Image
	w.preview.Refresh()
	w.title.ParseMarkdown("**" + items[i].Title + "**")
}

func (w *Window) Content() fyne.CanvasObject {
	return w.content
}

// Show opens the gallery in a window and blocks until it is closed.
func Show(g *Gallery, title string) {
	a := app.New()
	win := a.NewWindow(title)
	win.SetContent(NewWindow(g).Content())
	win.Resize(fyne.NewSize(ImageAreaWidth+ThumbnailSize+80, ImageAreaHeight+40))
	win.ShowAndRun()
}
