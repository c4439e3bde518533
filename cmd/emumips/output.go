package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/xlab/treeprint"

	"emumips/sim"
)

func render(w io.Writer, output, name string, f *sim.File) error {
	switch output {
	case "json":
		return renderJSON(w, f)
	case "table":
		renderTable(w, name, f)
		return nil
	default:
		_, err := fmt.Fprint(w, renderTree(name, f))
		return err
	}
}

func renderTree(name string, f *sim.File) string {
	tree := treeprint.NewWithRoot(name)

	hdr := tree.AddBranch("header")
	hdr.AddNode(fmt.Sprintf("entry: 0x%08x", f.Entry))
	hdr.AddNode(fmt.Sprintf("flags: 0x%08x", f.Flags))
	hdr.AddNode(fmt.Sprintf("program headers: %d at 0x%x (%d bytes each)", f.ProgramHeaderCount, f.ProgramHeaderOffset, f.ProgramHeaderEntrySize))
	hdr.AddNode(fmt.Sprintf("section headers: %d at 0x%x (%d bytes each)", f.SectionHeaderCount, f.SectionHeaderOffset, f.SectionHeaderEntrySize))
	hdr.AddNode(fmt.Sprintf("section names: section %d", f.SectionNameTableIndex))

	progs := tree.AddBranch("program headers")
	for i, p := range f.Progs {
		b := progs.AddBranch(fmt.Sprintf("[%d] %s %s", i, p.Type, p.Flags))
		b.AddNode(fmt.Sprintf("offset: 0x%x", p.Offset))
		b.AddNode(fmt.Sprintf("vaddr: 0x%08x paddr: 0x%08x", p.Vaddr, p.Paddr))
		b.AddNode(fmt.Sprintf("filesz: 0x%x memsz: 0x%x align: 0x%x", p.Filesz, p.Memsz, p.Align))
	}

	sections := tree.AddBranch("sections")
	for i, s := range f.Sections {
		b := sections.AddBranch(fmt.Sprintf("[%d] %q %s", i, s.Name, s.Type))
		if s.Type == sim.SHT_NULL {
			continue
		}
		b.AddNode(fmt.Sprintf("flags: %s", s.Flags))
		b.AddNode(fmt.Sprintf("addr: 0x%08x offset: 0x%x size: 0x%x", s.Addr, s.Offset, s.Size))
		b.AddNode(fmt.Sprintf("link: %d info: %d addralign: %d entsize: %d", s.Link, s.Info, s.Addralign, s.Entsize))
	}
	return tree.String()
}

func renderJSON(w io.Writer, f *sim.File) error {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func renderTable(w io.Writer, name string, f *sim.File) {
	fmt.Fprintf(w, "%s: entry 0x%08x, flags 0x%08x\n", name, f.Entry, f.Flags)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Type", "Offset", "VirtAddr", "PhysAddr", "FileSiz", "MemSiz", "Flags", "Align"})
	for i, p := range f.Progs {
		table.Append([]string{
			fmt.Sprint(i),
			p.Type.String(),
			fmt.Sprintf("0x%06x", p.Offset),
			fmt.Sprintf("0x%08x", p.Vaddr),
			fmt.Sprintf("0x%08x", p.Paddr),
			fmt.Sprintf("0x%05x", p.Filesz),
			fmt.Sprintf("0x%05x", p.Memsz),
			p.Flags.String(),
			fmt.Sprintf("0x%x", p.Align),
		})
	}
	table.Render()

	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Name", "Type", "Addr", "Off", "Size", "Flags", "Link", "Info", "Al"})
	for i, s := range f.Sections {
		table.Append([]string{
			fmt.Sprint(i),
			s.Name,
			s.Type.String(),
			fmt.Sprintf("0x%08x", s.Addr),
			fmt.Sprintf("0x%06x", s.Offset),
			fmt.Sprintf("0x%06x", s.Size),
			s.Flags.String(),
			fmt.Sprint(s.Link),
			fmt.Sprint(s.Info),
			fmt.Sprint(s.Addralign),
		})
	}
	table.Render()
}

func renderImage(w io.Writer, f *sim.File, img *sim.Image) error {
	loadable := lo.SumBy(f.LoadSegments(), func(p *sim.ProgramHeader) uint64 { return uint64(p.Memsz) })
	fmt.Fprintf(w, "Produced ELF image of size: %s (%d bytes, %s loadable)\n",
		humanize.IBytes(uint64(img.Len())), img.Len(), humanize.IBytes(loadable))
	fmt.Fprintf(w, "Entry: 0x%08x\n", f.Entry)
	fmt.Fprintf(w, "Digest: xxh64:%016x\n", img.Digest())

	cpu := sim.NewCPU(img)
	cpu.Reset(f.Entry)
	inst, ok := cpu.Fetch()
	if !ok {
		return errors.Errorf("entry point 0x%08x is outside the image", f.Entry)
	}
	_, err := fmt.Fprintf(w, "First Instruction: %s (%s)\n", inst, inst.Fields())
	return err
}
