package commands

import "git.home.luguber.info/inful/pkgbuilder/internal/descriptor"

// PrintCmd implements the 'print' command.
type PrintCmd struct {
	Descriptor string `short:"f" help:"Descriptor path relative to the root (default: paths.descriptor)" placeholder:"PATH"`
}

func (p *PrintCmd) Run(g *Global) error {
	doc, err := descriptor.Load(g.descriptorPath(p.Descriptor))
	if err != nil {
		return err
	}
	return doc.Print(g.Stdout)
}
