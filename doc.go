// Package pagewriter renders records through html/template views and hands
// the result to a pluggable file writer.
//
// A Writer is built once from Options: the views are looked up in the
// ViewsDir search paths, and templates can use the registered globals,
// functions and filters, plus a "markdown" filter backed by goldmark.
// Where and how pages are stored is decided by the WriterFactory passed to
// New; pagewriter only supplies the render callback.
//
//	w, err := pagewriter.New(pagewriter.DefaultOptions(), newFileWriter)
//	if err != nil {
//		return err
//	}
//	defer w.Close()
//	err = w.Write(ctx, pagewriter.Data{"title": "Home", "body": "# Hello"})
package pagewriter
