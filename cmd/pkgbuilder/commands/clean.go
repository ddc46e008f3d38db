package commands

import "git.home.luguber.info/inful/pkgbuilder/internal/build"

// CleanCmd implements the 'clean' command.
type CleanCmd struct {
	Descriptor string `short:"f" help:"Descriptor path relative to the root (default: paths.descriptor)" placeholder:"PATH"`
	Purge      bool   `help:"Also remove the package and source trees"`
}

func (c *CleanCmd) Run(g *Global) error {
	return g.newService().Clean(g.Ctx, build.CleanRequest{
		Root:       g.Root,
		Descriptor: c.Descriptor,
		Purge:      c.Purge,
	})
}
