package file

import (
	"fmt"
	"io"
	"net/textproto"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
)

// FileSystem storage a record dump lives on
type FileSystem interface {
	Exists(fileName string) (bool, error)
	Open(fileName string) (io.ReadCloser, error)
	Create(fileName string) (io.WriteCloser, error)
}

type LocalFileSystem struct {
}

func (fs *LocalFileSystem) Exists(fileName string) (bool, error) {
	_, err := os.Stat(fileName)
	if err != nil && os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (fs *LocalFileSystem) Open(fileName string) (io.ReadCloser, error) {
	return os.Open(fileName)
}

func (fs *LocalFileSystem) Create(fileName string) (io.WriteCloser, error) {
	return os.Create(fileName)
}

// FTPFileSystem reads and writes dumps on a remote FTP server, one
// connection per operation
type FTPFileSystem struct {
	Host        string
	Port        int
	User        string
	Password    string
	ConnTimeout time.Duration
}

func (fs *FTPFileSystem) connect() (*ftp.ServerConn, error) {
	c, err := ftp.DialTimeout(fmt.Sprintf("%s:%d", fs.Host, fs.Port), fs.ConnTimeout)
	if err != nil {
		return nil, err
	}
	err = c.Login(fs.User, fs.Password)
	return c, err
}

func (fs *FTPFileSystem) Exists(fileName string) (bool, error) {
	c, err := fs.connect()
	if c != nil {
		defer c.Quit()
	}
	if err != nil {
		return false, err
	}
	_, err = c.FileSize(fileName)
	if err == nil {
		return true, nil
	}
	if e, ok := err.(*textproto.Error); ok && e.Code == ftp.StatusFileUnavailable {
		return false, nil
	}
	return false, err
}

func (fs *FTPFileSystem) Open(fileName string) (io.ReadCloser, error) {
	c, err := fs.connect()
	if err != nil {
		if c != nil {
			c.Quit()
		}
		return nil, err
	}
	resp, err := c.Retr(fileName)
	if err != nil {
		c.Quit()
		return nil, err
	}
	return &ftpReader{resp: resp, quit: c.Quit}, nil
}

func (fs *FTPFileSystem) Create(fileName string) (io.WriteCloser, error) {
	c, err := fs.connect()
	if err != nil {
		if c != nil {
			c.Quit()
		}
		return nil, err
	}
	r, w := io.Pipe()
	done := make(chan error, 1)
	//Stor consumes the pipe until the writer side is closed
	go func() {
		err := c.Stor(fileName, r)
		r.CloseWithError(err)
		done <- err
	}()
	return &ftpWriter{pw: w, done: done, quit: c.Quit}, nil
}

//ftpReader keeps the connection open until the caller finished reading
type ftpReader struct {
	resp io.ReadCloser
	quit func() error
}

func (r *ftpReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpReader) Close() error {
	err := r.resp.Close()
	if qerr := r.quit(); err == nil {
		err = qerr
	}
	return err
}

//ftpWriter closing it completes the transfer and reports its outcome
type ftpWriter struct {
	pw   *io.PipeWriter
	done chan error
	quit func() error
}

func (w *ftpWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *ftpWriter) Close() error {
	err := w.pw.Close()
	if serr := <-w.done; err == nil {
		err = serr
	}
	if qerr := w.quit(); err == nil {
		err = qerr
	}
	return err
}
