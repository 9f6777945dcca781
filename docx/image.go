package docx

import (
	"image"
	"path"

	// Register decoders for the raster formats Word embeds.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
)

// drawingObject describes a <w:drawing>: a chart, or an image whose pixel
// size is read from its media part when the format is known.
func (r *Reader) drawingObject(d drawingXML) model.InlineObject {
	obj := model.InlineObject{Kind: model.ObjectImage}
	f := d.frame()
	if f == nil {
		return obj
	}

	obj.Name = f.DocPr.Name
	if f.Graphic.URI == chartURI {
		obj.Kind = model.ObjectChart
		return obj
	}
	if f.Graphic.Blip == nil {
		return obj
	}
	if _, part := r.relTarget(f.Graphic.Blip.Embed); part != "" {
		obj.Name = path.Base(part)
		obj.Width, obj.Height = r.imageSize(part)
	}
	return obj
}

// imageSize returns the pixel dimensions of an image part, or zeros when
// the part is missing or not a decodable raster (EMF and WMF are common).
func (r *Reader) imageSize(part string) (width, height int) {
	f := r.getFile(part)
	if f == nil {
		return 0, 0
	}
	rc, err := f.Open()
	if err != nil {
		return 0, 0
	}
	defer rc.Close()

	cfg, _, err := image.DecodeConfig(rc)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
