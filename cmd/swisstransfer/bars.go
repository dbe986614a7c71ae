package main

import (
	"io"

	"swisstransfer/pkg/progress"

	"github.com/cheggaaa/pb/v3"
)

const barTemplate = `{{string . "label"}} {{counters . }} {{bar . }} {{percent . }} {{speed . }}`

// progressBar renders a progress tree as a single byte counter.
type progressBar struct {
	bar *pb.ProgressBar
}

func newProgressBar(out io.Writer, label string, total int64) *progressBar {
	bar := pb.New64(total)
	bar.Set(pb.Bytes, true)
	bar.SetTemplate(barTemplate)
	bar.Set("label", label)
	bar.SetWriter(out)
	return &progressBar{bar: bar}
}

func (p *progressBar) start() {
	p.bar.Start()
}

// update is safe to call from concurrent event callbacks.
func (p *progressBar) update(tree progress.Tree) {
	if tree.Total > p.bar.Total() {
		p.bar.SetTotal(tree.Total)
	}
	p.bar.SetCurrent(tree.Transferred)
}

func (p *progressBar) finish() {
	p.bar.Finish()
}
